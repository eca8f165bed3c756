package model

import "time"

// ChatRoom 单聊会话，一对用户至多一条记录
type ChatRoom struct {
	ID           string    `gorm:"primaryKey;type:char(36)" json:"id"`
	FirstUserID  string    `gorm:"type:char(36);not null;uniqueIndex:idx_room_users,priority:1" json:"firstUserId"`
	SecondUserID string    `gorm:"type:char(36);not null;uniqueIndex:idx_room_users,priority:2;index:idx_room_second" json:"secondUserId"`
	PairKey      string    `gorm:"type:varchar(80);not null;uniqueIndex:idx_room_pair_key" json:"-"` // min|max
	CreatedAt    time.Time `json:"createdAt"`
}

func (ChatRoom) TableName() string { return "chat_rooms" }

// PairKey 生成与顺序无关的用户对标识
func PairKey(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + "|" + userB
}

// OtherUserID 返回会话中另一方的用户 ID
func (r *ChatRoom) OtherUserID(userID string) string {
	if r.FirstUserID != userID {
		return r.FirstUserID
	}
	return r.SecondUserID
}

// HasMember 判断用户是否属于该会话
func (r *ChatRoom) HasMember(userID string) bool {
	return r.FirstUserID == userID || r.SecondUserID == userID
}
