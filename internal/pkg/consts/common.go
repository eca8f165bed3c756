package consts

const (
	MimePrefixImage = "image"
)

const (
	DefaultAvatarURL = "default_avatar.png"
	MaxAvatarSize    = 5 << 20
	AvatarEdge       = 256
)

const (
	SearchDefaultLimit = 20
	SearchMaxLimit     = 50
	MinPasswordLength  = 6
)

// websocket 入站目的地
const (
	DestSendPrivateMessage = "send-private-message"
	DestAnnounceJoin       = "announce-join"
	DestBroadcastPublic    = "broadcast-public"
)

// websocket 出站频道
const (
	ChannelPrivateMessages = "/user/queue/messages"
	ChannelOnline          = "/topic/online"
	ChannelStatus          = "/topic/status"
	ChannelPublic          = "/topic/public"
	ChannelErrors          = "/user/queue/errors"
)

// gin.Context 中的键
const (
	CtxUserID = "user_id"
	CtxEmail  = "email"
	CtxToken  = "token"
)
