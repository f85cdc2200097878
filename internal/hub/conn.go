package hub

// connHandle is the unit of ownership the address table holds for an
// admitted connection: an outbound queue the connection's own write loop
// drains. It is handed to the clients goroutine on AddClient and dropped
// on RemoveClient; readers never touch the table directly.
type connHandle struct {
	addr     string
	role     Role
	outbound chan []byte
}

func newConnHandle(addr string, role Role) *connHandle {
	return &connHandle{
		addr:     addr,
		role:     role,
		outbound: make(chan []byte, 64),
	}
}
