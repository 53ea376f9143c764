package registry

import (
	"fmt"
	"strings"

	"github.com/talkline/chat-app/internal/audit"
	"github.com/talkline/chat-app/internal/metrics"
)

// OpenChat opens a pair chat from c to the client registered as targetName.
// Any existing pair on either side is closed first, with a system message to
// the displaced partner, so the pair relation stays symmetric after every
// call.
func (r *Registry) OpenChat(c *Client, targetName string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if targetName == c.name {
		return errResult("ERROR: Connection failed - You cannot connect to yourself. Please specify a different client name.\n")
	}
	target, ok := r.byName[targetName]
	if !ok {
		return errResult(fmt.Sprintf(
			"ERROR: Connection failed - Client '%s' not found. The client may not be connected or the name is incorrect. Use available client names.\n",
			targetName))
	}
	if _, connected := r.clients[target.ID]; !connected {
		return errResult(fmt.Sprintf(
			"ERROR: Connection failed - Client '%s' is no longer connected. The client may have disconnected.\n",
			targetName))
	}
	if c.partner == target.ID {
		return errResult(fmt.Sprintf(
			"ERROR: Connection failed - You are already connected to '%s'. No need to reconnect.\n",
			targetName))
	}

	var res Result

	if ex := r.breakPairLocked(c); ex != nil {
		res.Deliveries = append(res.Deliveries, Delivery{
			To: ex,
			Line: fmt.Sprintf(
				"[System] %s ended the chat to start a new one. The chat session has been closed.\n", c.name),
		})
	}
	// The target may itself be paired; break that pair too so the relation
	// stays symmetric, and tell the displaced partner.
	if ex := r.breakPairLocked(target); ex != nil && ex != c {
		res.Deliveries = append(res.Deliveries, Delivery{
			To: ex,
			Line: fmt.Sprintf(
				"[System] %s ended the chat. The chat session has been closed.\n", target.name),
		})
	}

	c.partner = target.ID
	target.partner = c.ID
	metrics.PairChatsActive.Inc()

	res.Replies = append(res.Replies, fmt.Sprintf(
		"Connected to %s. You can now send messages directly.\n", targetName))
	res.Deliveries = append(res.Deliveries, Delivery{
		To:   target,
		Line: fmt.Sprintf("%s connected to you. You can now send messages directly.\n", c.name),
	})
	return res
}

// CloseChat closes c's current pair chat.
func (r *Registry) CloseChat(c *Client) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	ex := r.breakPairLocked(c)
	if ex == nil {
		return errResult("ERROR: You are not in any chat. Use CONNECT:name to start a chat.\n")
	}

	return Result{
		Replies: []string{"Chat disconnected successfully. You can start a new chat with CONNECT:name\n"},
		Deliveries: []Delivery{{
			To: ex,
			Line: fmt.Sprintf(
				"[System] %s ended the chat. The chat session has been closed.\n", c.name),
		}},
	}
}

// ForwardText handles a freeform line: forwarded to the pair partner when one
// exists, echoed in upper case otherwise.
func (r *Registry) ForwardText(c *Client, text string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()

	if c.partner == "" {
		reply := fmt.Sprintf("server received %s\n", strings.ToUpper(text))
		c.sent++
		metrics.MessagesTotal.WithLabelValues("echo").Inc()
		r.audit.Append(audit.Record{
			Timestamp:  audit.Timestamp(now),
			ClientID:   c.ID,
			ClientName: c.name,
			Direction:  audit.DirectionSent,
			Message:    strings.TrimRight(reply, "\n"),
		})
		return Result{Replies: []string{reply}}
	}

	partner, connected := r.clients[c.partner]
	if !connected {
		c.partner = ""
		metrics.PairChatsActive.Dec()
		return errResult("ERROR: Message delivery failed - Your chat partner has disconnected. The chat session has been closed.\n")
	}

	c.sent++
	partner.received++
	metrics.MessagesTotal.WithLabelValues("direct").Inc()
	r.audit.Append(audit.Record{
		Timestamp:  audit.Timestamp(now),
		ClientID:   partner.ID,
		ClientName: partner.name,
		Direction:  audit.DirectionReceived,
		Message:    fmt.Sprintf("Forwarded from %s: %s", c.name, text),
	})

	return Result{
		Forwarded: true,
		Deliveries: []Delivery{{
			To:   partner,
			Line: fmt.Sprintf("[%s]: %s\n", c.name, text),
		}},
	}
}

// PairWriteFailed tears down c's pair after an outbound write to the partner
// failed mid-forward, returning the error line for c. The partner's own
// disconnect path handles the rest of its cleanup.
func (r *Registry) PairWriteFailed(c *Client) string {
	r.mu.Lock()
	r.breakPairLocked(c)
	r.mu.Unlock()
	return "ERROR: Message delivery failed - Chat partner disconnected during message transmission. The chat session has been closed.\n"
}
