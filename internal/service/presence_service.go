package service

import (
	"ChatApp/internal/api/dto"
	"ChatApp/internal/model"
	"ChatApp/internal/pkg/consts"
	"ChatApp/internal/repository"
	"context"
	log "log/slog"
	"sort"
	"time"
)

// Session 一条已认证的实时连接
type Session interface {
	UserID() string
	// Send 非阻塞写入发送缓冲，缓冲已满或连接已关闭时返回 false
	Send(frame []byte) bool
	// Close 可重复调用，不得阻塞
	Close()
}

// PresenceService 在线状态追踪，所有状态由 Run 所在的单个 goroutine 持有
type PresenceService interface {
	Run(ctx context.Context) error
	Connect(ctx context.Context, session Session) error
	Disconnect(ctx context.Context, session Session)
	SendToUser(ctx context.Context, userID string, frame []byte) bool
	Broadcast(ctx context.Context, frame []byte)
	Snapshot(ctx context.Context) ([]*dto.PresenceUserDTO, error)
	Reconcile(ctx context.Context) (int, error)
}

type presenceEntry struct {
	user    model.User
	session Session
}

type connectReq struct {
	ctx     context.Context
	session Session
	result  chan error
}

type disconnectReq struct {
	ctx     context.Context
	session Session
	done    chan struct{}
}

type deliverReq struct {
	userID string
	frame  []byte
	result chan bool
}

type reconcileReq struct {
	ctx    context.Context
	result chan reconcileResult
}

type reconcileResult struct {
	flipped int
	err     error
}

type presenceServiceImpl struct {
	userRepo repository.UserRepo

	connectCh    chan *connectReq
	disconnectCh chan *disconnectReq
	deliverCh    chan *deliverReq
	broadcastCh  chan []byte
	snapshotCh   chan chan []*dto.PresenceUserDTO
	reconcileCh  chan *reconcileReq
	done         chan struct{}

	entries map[string]*presenceEntry
	now     func() time.Time
}

func NewPresenceService(userRepo repository.UserRepo) PresenceService {
	return &presenceServiceImpl{
		userRepo:     userRepo,
		connectCh:    make(chan *connectReq),
		disconnectCh: make(chan *disconnectReq),
		deliverCh:    make(chan *deliverReq),
		broadcastCh:  make(chan []byte),
		snapshotCh:   make(chan chan []*dto.PresenceUserDTO),
		reconcileCh:  make(chan *reconcileReq),
		done:         make(chan struct{}),
		entries:      make(map[string]*presenceEntry),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Run 事件循环，ctx 取消后关闭所有连接并将其标记为离线
func (s *presenceServiceImpl) Run(ctx context.Context) error {
	defer close(s.done)
	log.Info("Presence tracker started")

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			log.Info("Presence tracker stopped")
			return nil
		case req := <-s.connectCh:
			req.result <- s.handleConnect(req.ctx, req.session)
		case req := <-s.disconnectCh:
			s.handleDisconnect(req.ctx, req.session)
			close(req.done)
		case req := <-s.deliverCh:
			req.result <- s.handleDeliver(req.userID, req.frame)
		case frame := <-s.broadcastCh:
			s.broadcast(frame)
		case reply := <-s.snapshotCh:
			reply <- s.snapshot()
		case req := <-s.reconcileCh:
			n, err := s.handleReconcile(req.ctx)
			req.result <- reconcileResult{flipped: n, err: err}
		}
	}
}

// Connect 登记连接，同一用户的旧连接会被关闭并替换
func (s *presenceServiceImpl) Connect(ctx context.Context, session Session) error {
	req := &connectReq{ctx: ctx, session: session, result: make(chan error, 1)}
	select {
	case s.connectCh <- req:
	case <-s.done:
		return ErrPresenceStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.result:
		return err
	case <-s.done:
		return ErrPresenceStopped
	}
}

// Disconnect 注销连接，已被替换的连接不会影响当前状态
func (s *presenceServiceImpl) Disconnect(ctx context.Context, session Session) {
	req := &disconnectReq{ctx: ctx, session: session, done: make(chan struct{})}
	select {
	case s.disconnectCh <- req:
	case <-s.done:
		return
	}
	select {
	case <-req.done:
	case <-s.done:
	}
}

// SendToUser 投递到用户的私有频道，用户离线或缓冲已满时返回 false
func (s *presenceServiceImpl) SendToUser(ctx context.Context, userID string, frame []byte) bool {
	req := &deliverReq{userID: userID, frame: frame, result: make(chan bool, 1)}
	select {
	case s.deliverCh <- req:
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
	select {
	case ok := <-req.result:
		return ok
	case <-s.done:
		return false
	}
}

// Broadcast 推送到所有在线连接
func (s *presenceServiceImpl) Broadcast(ctx context.Context, frame []byte) {
	select {
	case s.broadcastCh <- frame:
	case <-s.done:
	case <-ctx.Done():
	}
}

// Snapshot 当前在线用户，按用户名排序
func (s *presenceServiceImpl) Snapshot(ctx context.Context) ([]*dto.PresenceUserDTO, error) {
	reply := make(chan []*dto.PresenceUserDTO, 1)
	select {
	case s.snapshotCh <- reply:
	case <-s.done:
		return nil, ErrPresenceStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case users := <-reply:
		return users, nil
	case <-s.done:
		return nil, ErrPresenceStopped
	}
}

// Reconcile 将数据库中标记在线但没有存活连接的用户置为离线
func (s *presenceServiceImpl) Reconcile(ctx context.Context) (int, error) {
	req := &reconcileReq{ctx: ctx, result: make(chan reconcileResult, 1)}
	select {
	case s.reconcileCh <- req:
	case <-s.done:
		return 0, ErrPresenceStopped
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case res := <-req.result:
		return res.flipped, res.err
	case <-s.done:
		return 0, ErrPresenceStopped
	}
}

func (s *presenceServiceImpl) handleConnect(ctx context.Context, session Session) error {
	userID := session.UserID()
	user, err := s.userRepo.GetUserById(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	now := s.now()
	if err = s.userRepo.UpdatePresence(ctx, userID, true, now); err != nil {
		return err
	}

	if old, ok := s.entries[userID]; ok && old.session != session {
		log.InfoContext(ctx, "replacing existing session", "user_id", userID)
		old.session.Close()
	}

	user.Online = true
	user.LastSeen = &now
	user.Password = ""
	s.entries[userID] = &presenceEntry{user: *user, session: session}

	log.InfoContext(ctx, "user online", "user_id", userID, "online_count", len(s.entries))
	s.publishChange(userID, true, now)
	return nil
}

func (s *presenceServiceImpl) handleDisconnect(ctx context.Context, session Session) {
	userID := session.UserID()
	entry, ok := s.entries[userID]
	if !ok || entry.session != session {
		log.DebugContext(ctx, "ignoring disconnect of replaced session", "user_id", userID)
		return
	}
	delete(s.entries, userID)

	now := s.now()
	if err := s.userRepo.UpdatePresence(ctx, userID, false, now); err != nil {
		log.ErrorContext(ctx, "failed to persist offline state", "user_id", userID, "err", err)
	}

	log.InfoContext(ctx, "user offline", "user_id", userID, "online_count", len(s.entries))
	s.publishChange(userID, false, now)
}

func (s *presenceServiceImpl) handleDeliver(userID string, frame []byte) bool {
	entry, ok := s.entries[userID]
	if !ok {
		return false
	}
	return entry.session.Send(frame)
}

func (s *presenceServiceImpl) handleReconcile(ctx context.Context) (int, error) {
	ids, err := s.userRepo.ListOnlineUserIDs(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	flipped := 0
	for _, id := range ids {
		if _, live := s.entries[id]; live {
			continue
		}
		if err = s.userRepo.UpdatePresence(ctx, id, false, now); err != nil {
			return flipped, err
		}
		flipped++
	}
	return flipped, nil
}

// publishChange 先推送在线快照，再推送单个用户的状态事件
func (s *presenceServiceImpl) publishChange(userID string, online bool, at time.Time) {
	if frame, err := EncodeFrame(consts.ChannelOnline, s.snapshot()); err == nil {
		s.broadcast(frame)
	} else {
		log.Error("encode online snapshot failed", "err", err)
	}

	status := &dto.StatusEventDTO{UserID: userID, IsOnline: online, LastSeen: at}
	if frame, err := EncodeFrame(consts.ChannelStatus, status); err == nil {
		s.broadcast(frame)
	} else {
		log.Error("encode status event failed", "err", err)
	}
}

func (s *presenceServiceImpl) broadcast(frame []byte) {
	for userID, entry := range s.entries {
		if !entry.session.Send(frame) {
			// 缓冲已满的连接视为慢消费者直接断开，由读循环走 Disconnect 清理
			log.Warn("broadcast dropped, closing slow session", "user_id", userID)
			entry.session.Close()
		}
	}
}

func (s *presenceServiceImpl) snapshot() []*dto.PresenceUserDTO {
	users := make([]*dto.PresenceUserDTO, 0, len(s.entries))
	for _, entry := range s.entries {
		u := entry.user
		users = append(users, &dto.PresenceUserDTO{
			ID:        u.ID,
			Name:      u.Name,
			Username:  u.Username,
			AvatarURL: u.AvatarURL,
			Online:    true,
			LastSeen:  u.LastSeen,
		})
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})
	return users
}

func (s *presenceServiceImpl) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := s.now()
	for userID, entry := range s.entries {
		entry.session.Close()
		if err := s.userRepo.UpdatePresence(ctx, userID, false, now); err != nil {
			log.Error("failed to persist offline state on shutdown", "user_id", userID, "err", err)
		}
	}
	s.entries = make(map[string]*presenceEntry)
}
