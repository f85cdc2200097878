package envelope

// ContentLen is the payload size plus the sum of attachment sizes.
func (m *MsgMeta) ContentLen() uint64 {
	return m.PayloadSize + m.AttachmentsLen()
}

// AttachmentsLen is the sum of attachment sizes.
func (m *MsgMeta) AttachmentsLen() uint64 {
	var total uint64
	for _, a := range m.Attachments {
		total += a.Size
	}
	return total
}

// AttachmentsSizes returns the ordered attachment sizes.
func (m *MsgMeta) AttachmentsSizes() []uint64 {
	sizes := make([]uint64, len(m.Attachments))
	for i, a := range m.Attachments {
		sizes[i] = a.Size
	}
	return sizes
}

// Display is a short human-readable summary of the meta.
func (m *MsgMeta) Display() string {
	return m.Tx + " " + m.Key.Action + " " + m.Key.Service + " " + m.Key.Domain
}

// ActionPart returns the zero-based i-th dot-separated segment of key.action.
func (m *MsgMeta) ActionPart(i int) (string, error) {
	return Address(m.Key.Action).Part(i)
}

// MatchActionPart reports whether action_part(i) equals value.
func (m *MsgMeta) MatchActionPart(i int, value string) bool {
	part, err := m.ActionPart(i)
	return err == nil && part == value
}

// TxPart returns the zero-based i-th dot-separated segment of tx.
func (m *MsgMeta) TxPart(i int) (string, error) {
	return Address(m.Tx).Part(i)
}

// MatchTxPart reports whether tx_part(i) equals value.
func (m *MsgMeta) MatchTxPart(i int, value string) bool {
	part, err := m.TxPart(i)
	return err == nil && part == value
}

// SourceCmpAddr returns route.source's address when it is a Component.
func (m *MsgMeta) SourceCmpAddr() (string, bool) {
	if m.Route.Source.Kind == ParticipatorComponent {
		return m.Route.Source.Addr, true
	}
	return "", false
}

// SourceCmpPart returns the i-th dot-separated segment of the Component
// source address.
func (m *MsgMeta) SourceCmpPart(i int) (string, error) {
	addr, ok := m.SourceCmpAddr()
	if !ok {
		return "", ErrNotComponentSource
	}
	return Address(addr).Part(i)
}

// MatchSourceCmpPart reports whether source_cmp_part(i) equals value.
func (m *MsgMeta) MatchSourceCmpPart(i int, value string) bool {
	part, err := m.SourceCmpPart(i)
	return err == nil && part == value
}

// SourceCmpPartBeforeLast returns the second-to-last segment of the
// Component source address.
func (m *MsgMeta) SourceCmpPartBeforeLast() (string, error) {
	addr, ok := m.SourceCmpAddr()
	if !ok {
		return "", ErrNotComponentSource
	}
	return Address(addr).PartBeforeLast()
}

// SourceSvcAddr returns route.source's address when it is a Service.
func (m *MsgMeta) SourceSvcAddr() (string, bool) {
	if m.Route.Source.Kind == ParticipatorService {
		return m.Route.Source.Addr, true
	}
	return "", false
}

// ClientCmpAddr returns the redirected-response Component address when
// route.spec is Client(Component(...)).
func (m *MsgMeta) ClientCmpAddr() (string, bool) {
	if m.Route.Spec.Kind == RouteClient && m.Route.Spec.Client.Kind == ParticipatorComponent {
		return m.Route.Spec.Client.Addr, true
	}
	return "", false
}

// ClientSvcAddr returns the redirected-response Service address when
// route.spec is Client(Service(...)).
func (m *MsgMeta) ClientSvcAddr() (string, bool) {
	if m.Route.Spec.Kind == RouteClient && m.Route.Spec.Client.Kind == ParticipatorService {
		return m.Route.Spec.Client.Addr, true
	}
	return "", false
}
