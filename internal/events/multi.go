package events

// Multi fans every event out to all of its publishers.
type Multi []Publisher

// Combine drops Nop publishers and unwraps a single remaining one.
func Combine(publishers ...Publisher) Publisher {
	var m Multi
	for _, p := range publishers {
		if p == nil {
			continue
		}
		if _, ok := p.(Nop); ok {
			continue
		}
		m = append(m, p)
	}
	switch len(m) {
	case 0:
		return Nop{}
	case 1:
		return m[0]
	}
	return m
}

func (m Multi) Publish(e Event) {
	for _, p := range m {
		p.Publish(e)
	}
}

func (m Multi) Close() {
	for _, p := range m {
		p.Close()
	}
}
