package registry

import (
	"sort"
	"time"
)

// ClientStats is the per-connection entry of the statistics document.
type ClientStats struct {
	Address          string   `json:"address"`
	Name             string   `json:"name"`
	ConnectedAt      string   `json:"connected_at"`
	MessagesSent     int      `json:"messages_sent"`
	MessagesReceived int      `json:"messages_received"`
	ChatPartner      bool     `json:"chat_partner"`
	ChatPartnerName  *string  `json:"chat_partner_name"`
	Groups           []string `json:"groups"`
}

// Stats is the statistics document consumed by monitoring GUIs.
type Stats struct {
	ConnectedClients int                    `json:"connected_clients"`
	TotalMessages    int                    `json:"total_messages"`
	MessagesReceived int                    `json:"messages_received"`
	MessagesSent     int                    `json:"messages_sent"`
	ClientsInfo      map[string]ClientStats `json:"clients_info"`
	Groups           map[string][]string    `json:"groups"`
	ChatConnections  map[string]string      `json:"chat_connections"`
}

// Statistics builds a consistent snapshot of the registry plus the audit-log
// message counters.
func (r *Registry) Statistics() Stats {
	received, sent := r.audit.Counts()

	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{
		ConnectedClients: len(r.clients),
		TotalMessages:    received + sent,
		MessagesReceived: received,
		MessagesSent:     sent,
		ClientsInfo:      make(map[string]ClientStats, len(r.clients)),
		Groups:           make(map[string][]string, len(r.groups)),
		ChatConnections:  make(map[string]string),
	}

	for id, c := range r.clients {
		name := c.name
		if name == "" {
			name = "Unknown"
		}
		groups := make([]string, 0, len(c.groups))
		for g := range c.groups {
			groups = append(groups, g)
		}
		sort.Strings(groups)

		entry := ClientStats{
			Address:          c.RemoteAddr,
			Name:             name,
			ConnectedAt:      c.ConnectedAt.Format(time.RFC3339Nano),
			MessagesSent:     c.sent,
			MessagesReceived: c.received,
			Groups:           groups,
		}
		if partner, ok := r.clients[c.partner]; c.partner != "" && ok {
			partnerName := partner.name
			if partnerName == "" {
				partnerName = "Unknown"
			}
			entry.ChatPartner = true
			entry.ChatPartnerName = &partnerName
			stats.ChatConnections[id] = partnerName
		}
		stats.ClientsInfo[id] = entry
	}

	for g := range r.groups {
		stats.Groups[g] = r.memberNamesLocked(g)
	}
	return stats
}
