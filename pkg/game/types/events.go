package types

type ConnectPlayerEvent struct {
	ClientID uint32
	UserID   string
	Handle   string
}

type DisconnectPlayerEvent struct {
	ClientID uint32
}
