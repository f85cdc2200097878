package hub

// controlMessage is the sealed sum type carried on the hub's control
// channel. The clients goroutine is the sole consumer and sole owner of
// the address table it mutates in response to these messages.
type controlMessage interface {
	isControlMessage()
}

type addClientMsg struct {
	addr   string
	handle *connHandle
}

type removeClientMsg struct {
	addr string
}

type sendMsgMsg struct {
	addr  string
	frame []byte
}

func (addClientMsg) isControlMessage()    {}
func (removeClientMsg) isControlMessage() {}
func (sendMsgMsg) isControlMessage()      {}
