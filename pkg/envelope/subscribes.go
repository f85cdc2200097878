package envelope

import "sort"

// ByAddr is the address-keyed view of subscriptions: for each of the three
// message categories, which routing keys a given address subscribes to.
type ByAddr struct {
	Events       map[string]map[Key]struct{}
	RpcRequests  map[string]map[Key]struct{}
	RpcResponses map[string]map[Key]struct{}
}

// NewByAddr builds an empty ByAddr index.
func NewByAddr() ByAddr {
	return ByAddr{
		Events:       map[string]map[Key]struct{}{},
		RpcRequests:  map[string]map[Key]struct{}{},
		RpcResponses: map[string]map[Key]struct{}{},
	}
}

// Subscribe records that addr subscribes to key in the given category.
func (b ByAddr) Subscribe(category Category, addr string, key Key) {
	m := b.categoryMap(category)
	if m[addr] == nil {
		m[addr] = map[Key]struct{}{}
	}
	m[addr][key] = struct{}{}
}

func (b ByAddr) categoryMap(category Category) map[string]map[Key]struct{} {
	switch category {
	case CategoryEvents:
		return b.Events
	case CategoryRpcRequests:
		return b.RpcRequests
	default:
		return b.RpcResponses
	}
}

// Category identifies one of the three subscription streams.
type Category int

const (
	CategoryEvents Category = iota
	CategoryRpcRequests
	CategoryRpcResponses
)

// ByKey is the key-keyed view of subscriptions: for each of the three
// message categories, which addresses subscribe to a given routing key.
type ByKey struct {
	Events       map[Key][]string
	RpcRequests  map[Key][]string
	RpcResponses map[Key][]string
}

// ToByKey inverts the address→keys view into the key→addresses view. Each
// category's address list is emitted in sorted address order, so two
// structurally equal ByAddr indexes always invert to equal ByKey indexes.
func (b ByAddr) ToByKey() ByKey {
	return ByKey{
		Events:       invertToByKey(b.Events),
		RpcRequests:  invertToByKey(b.RpcRequests),
		RpcResponses: invertToByKey(b.RpcResponses),
	}
}

func invertToByKey(m map[string]map[Key]struct{}) map[Key][]string {
	out := map[Key][]string{}
	addrs := make([]string, 0, len(m))
	for addr := range m {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	for _, addr := range addrs {
		keys := make([]Key, 0, len(m[addr]))
		for k := range m[addr] {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
		for _, k := range keys {
			out[k] = append(out[k], addr)
		}
	}
	return out
}

// ToByAddr inverts the key→addresses view back into the address→keys view.
func (b ByKey) ToByAddr() ByAddr {
	return ByAddr{
		Events:       invertToByAddr(b.Events),
		RpcRequests:  invertToByAddr(b.RpcRequests),
		RpcResponses: invertToByAddr(b.RpcResponses),
	}
}

func invertToByAddr(m map[Key][]string) map[string]map[Key]struct{} {
	out := map[string]map[Key]struct{}{}
	for key, addrs := range m {
		for _, addr := range addrs {
			if out[addr] == nil {
				out[addr] = map[Key]struct{}{}
			}
			out[addr][key] = struct{}{}
		}
	}
	return out
}

func keyLess(a, b Key) bool {
	if a.Action != b.Action {
		return a.Action < b.Action
	}
	if a.Service != b.Service {
		return a.Service < b.Service
	}
	return a.Domain < b.Domain
}
