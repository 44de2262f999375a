package authkit

// Can describes the can operation and its observable behavior.
//
// Can does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Can(permission string) bool {
	if permission == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.permissions[permission]
	return ok
}

// CanAll describes the canall operation and its observable behavior.
//
// CanAll does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
// It reports true only when every listed permission is held; an empty list is
// vacuously true.
func (m *Manager) CanAll(permissions []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range permissions {
		if _, ok := m.permissions[p]; !ok {
			return false
		}
	}
	return true
}

// CanAny describes the canany operation and its observable behavior.
//
// CanAny does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) CanAny(permissions []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range permissions {
		if _, ok := m.permissions[p]; ok {
			return true
		}
	}
	return false
}
