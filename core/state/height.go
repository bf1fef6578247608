package state

// HostHeight returns the number of committed units of work.
func (m *Manager) HostHeight() (uint64, error) {
	return m.Uint64(hostHeightKey)
}

// AdvanceHostHeight records another committed unit of work.
func (m *Manager) AdvanceHostHeight() (uint64, error) {
	return m.IncrementUint64(hostHeightKey)
}
