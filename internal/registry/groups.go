package registry

import (
	"fmt"

	"github.com/talkline/chat-app/internal/audit"
	"github.com/talkline/chat-app/internal/metrics"
)

// CreateGroup creates a new group with c as its sole member and announces it
// to every other connected client.
func (r *Registry) CreateGroup(c *Client, group string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if group == "" {
		return errResult("ERROR: Group name cannot be empty\n")
	}
	if _, exists := r.groups[group]; exists {
		return errResult(fmt.Sprintf("ERROR: Group '%s' already exists\n", group))
	}

	r.groups[group] = map[string]*Client{c.ID: c}
	c.groups[group] = struct{}{}
	metrics.GroupsActive.Inc()

	res := Result{
		Replies: []string{fmt.Sprintf("Group '%s' created. You are now a member.\n", group)},
	}
	notification := fmt.Sprintf("GROUP_UPDATED: %s was created\n", group)
	for _, other := range r.othersLocked(c) {
		res.Deliveries = append(res.Deliveries, Delivery{To: other, Line: notification})
	}
	return res
}

// JoinGroup adds c to an existing group, notifying the current members and
// announcing the change to everyone else.
func (r *Registry) JoinGroup(c *Client, group string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, exists := r.groups[group]
	if !exists {
		return errResult(fmt.Sprintf("ERROR: Group '%s' does not exist\n", group))
	}
	if _, member := members[c.ID]; member {
		return errResult(fmt.Sprintf("ERROR: You are already a member of group '%s'\n", group))
	}

	members[c.ID] = c
	c.groups[group] = struct{}{}

	res := Result{
		Replies: []string{fmt.Sprintf("Joined group '%s'\n", group)},
	}
	memberNote := fmt.Sprintf("%s joined group '%s'\n", c.name, group)
	for _, m := range members {
		if m != c {
			res.Deliveries = append(res.Deliveries, Delivery{To: m, Line: memberNote})
		}
	}
	notification := fmt.Sprintf("GROUP_UPDATED: %s joined %s\n", c.name, group)
	for _, other := range r.othersLocked(c) {
		res.Deliveries = append(res.Deliveries, Delivery{To: other, Line: notification})
	}
	return res
}

// InviteToGroup adds the client registered as inviteeName to the group. The
// inviter must already be a member; the invitee is added without being asked.
func (r *Registry) InviteToGroup(c *Client, group, inviteeName string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, exists := r.groups[group]
	if !exists {
		return errResult(fmt.Sprintf("ERROR: Group '%s' does not exist\n", group))
	}
	if _, member := members[c.ID]; !member {
		return errResult(fmt.Sprintf("ERROR: You are not a member of group '%s'\n", group))
	}
	invitee, ok := r.byName[inviteeName]
	if !ok {
		return errResult(fmt.Sprintf("ERROR: User '%s' is not connected\n", inviteeName))
	}
	if _, member := members[invitee.ID]; member {
		return errResult(fmt.Sprintf(
			"ERROR: User '%s' is already a member of group '%s'\n", inviteeName, group))
	}

	members[invitee.ID] = invitee
	invitee.groups[group] = struct{}{}

	var res Result
	res.Deliveries = append(res.Deliveries, Delivery{
		To:   invitee,
		Line: fmt.Sprintf("You were added to group '%s' by %s\n", group, c.name),
	})
	memberNote := fmt.Sprintf("%s was added to group '%s' by %s\n", inviteeName, group, c.name)
	for _, m := range members {
		if m != c && m != invitee {
			res.Deliveries = append(res.Deliveries, Delivery{To: m, Line: memberNote})
		}
	}
	notification := fmt.Sprintf("GROUP_UPDATED: %s was added to %s\n", inviteeName, group)
	for _, other := range r.othersLocked(c, invitee) {
		res.Deliveries = append(res.Deliveries, Delivery{To: other, Line: notification})
	}
	res.Replies = append(res.Replies, fmt.Sprintf(
		"User '%s' was added to group '%s'\n", inviteeName, group))
	return res
}

// LeaveGroup removes c from the group. Membership is removed and the
// remaining-member snapshot taken before the group is (possibly) deleted, so
// an emptied group is never iterated after deletion.
func (r *Registry) LeaveGroup(c *Client, group string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, exists := r.groups[group]
	if !exists {
		return errResult(fmt.Sprintf("ERROR: Group '%s' does not exist\n", group))
	}
	if _, member := members[c.ID]; !member {
		return errResult(fmt.Sprintf("ERROR: You are not a member of group '%s'\n", group))
	}

	delete(members, c.ID)
	delete(c.groups, group)

	remaining := make([]*Client, 0, len(members))
	for _, m := range members {
		remaining = append(remaining, m)
	}

	var ack string
	if len(remaining) == 0 {
		delete(r.groups, group)
		metrics.GroupsActive.Dec()
		ack = fmt.Sprintf("Left group '%s' (group removed as it's now empty)\n", group)
	} else {
		ack = fmt.Sprintf("Left group '%s'\n", group)
	}

	res := Result{Replies: []string{ack}}
	memberNote := fmt.Sprintf("%s left group '%s'\n", c.name, group)
	for _, m := range remaining {
		res.Deliveries = append(res.Deliveries, Delivery{To: m, Line: memberNote})
	}
	notification := fmt.Sprintf("GROUP_UPDATED: %s left %s\n", c.name, group)
	for _, other := range r.othersLocked(c) {
		res.Deliveries = append(res.Deliveries, Delivery{To: other, Line: notification})
	}
	return res
}

// GroupMessage fans a message out to every member of the group except the
// sender and reports the recipient count back.
func (r *Registry) GroupMessage(c *Client, group, text string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, exists := r.groups[group]
	if !exists {
		return errResult(fmt.Sprintf("ERROR: Group '%s' does not exist\n", group))
	}
	if _, member := members[c.ID]; !member {
		return errResult(fmt.Sprintf("ERROR: You are not a member of group '%s'\n", group))
	}

	var res Result
	forward := fmt.Sprintf("[%s] %s: %s\n", group, c.name, text)
	sent := 0
	for _, m := range members {
		if m == c {
			continue
		}
		res.Deliveries = append(res.Deliveries, Delivery{To: m, Line: forward})
		m.received++
		sent++
	}
	c.sent += sent
	metrics.MessagesTotal.WithLabelValues("group").Add(float64(sent))

	if sent > 0 {
		res.Replies = append(res.Replies, fmt.Sprintf(
			"Message sent to %d member(s) in group '%s'\n", sent, group))
	} else {
		res.Replies = append(res.Replies, fmt.Sprintf(
			"Message sent to group '%s' (no other members online)\n", group))
	}

	r.audit.Append(audit.Record{
		Timestamp:  audit.Timestamp(r.now()),
		ClientID:   c.ID,
		ClientName: c.name,
		Direction:  audit.DirectionSent,
		Message:    fmt.Sprintf("Group message to %s: %s", group, text),
	})
	return res
}
