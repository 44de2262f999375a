package authkit

import (
	"context"
	"encoding/json"
	"log"

	"github.com/vantagecms/authkit/broadcast"
)

// sessionPayload is the wire shape carried by login/renewed broadcasts. Sibling
// contexts apply it to local in-memory state without issuing a network call;
// the publisher already persisted the shared refresh token.
type sessionPayload struct {
	User         User     `json:"user"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	Permissions  []string `json:"permissions,omitempty"`
}

func grantPayload(grant *Grant) json.RawMessage {
	data, err := json.Marshal(sessionPayload{
		User:         grant.User,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		Permissions:  grant.Permissions,
	})
	if err != nil {
		return nil
	}
	return data
}

func (m *Manager) publish(ctx context.Context, kind broadcast.Kind, payload json.RawMessage) {
	if m.caster == nil {
		return
	}
	if err := m.caster.Publish(ctx, kind, payload); err != nil {
		log.Print("authkit: session broadcast publish failed")
		return
	}
	m.metricInc(MetricBroadcastPublished)
}

// handleBroadcast applies a sibling context's session change to local state.
// The broadcaster has already filtered own-origin and stale messages; this
// layer validates payloads and guards the local-renewal race.
func (m *Manager) handleBroadcast(msg broadcast.Message) {
	switch msg.Kind {
	case broadcast.KindLogin, broadcast.KindRenewed:
		var payload sessionPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			m.metricInc(MetricBroadcastDiscarded)
			log.Print("authkit: malformed session broadcast discarded")
			return
		}
		if payload.AccessToken == "" || payload.RefreshToken == "" {
			m.metricInc(MetricBroadcastDiscarded)
			return
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		user := payload.User
		m.user = &user
		m.accessToken = payload.AccessToken
		m.refreshToken = payload.RefreshToken
		m.permissions = permissionSet(payload.Permissions)
		m.status = StatusAuthenticated
		m.mu.Unlock()

		// Re-arm with the received token; no network call is issued.
		m.scheduler.Arm(payload.AccessToken, m.onScheduledRenewal)
		m.metricInc(MetricBroadcastApplied)
		kind := EventLogin
		if msg.Kind == broadcast.KindRenewed {
			kind = EventRenewed
		}
		m.emitEvent(context.Background(), kind, payload.User.ID, true, nil)

	case broadcast.KindLoggedOut:
		// A renewal in flight locally may be about to succeed with fresher
		// state than the sibling's logout; let it win.
		if m.flight.InFlight() {
			m.metricInc(MetricBroadcastDiscarded)
			return
		}

		wasAuthenticated := m.clearSession(context.Background())
		m.metricInc(MetricBroadcastApplied)
		if wasAuthenticated {
			m.emitEvent(context.Background(), EventLoggedOut, "", true, nil)
		}

	default:
		m.metricInc(MetricBroadcastDiscarded)
	}
}
