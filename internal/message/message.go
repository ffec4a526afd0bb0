// Package message defines chat messages: a common envelope around exactly one
// typed payload.
package message

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrMalformed is returned when a message does not satisfy the envelope or
// payload invariants.
var ErrMalformed = errors.New("malformed message")

// Type discriminates the payload of a message.
type Type string

const (
	TypeText        Type = "text"
	TypeImage       Type = "image"
	TypeFile        Type = "file"
	TypeAudio       Type = "audio"
	TypePoll        Type = "poll"
	TypeGIF         Type = "gif"
	TypeAppointment Type = "appointment"
)

// Types lists every payload type.
var Types = []Type{TypeText, TypeImage, TypeFile, TypeAudio, TypePoll, TypeGIF, TypeAppointment}

// Payload is the closed set of message bodies. Only types in this package
// implement it.
type Payload interface {
	Type() Type
	validate() error
}

// Message is the envelope shared by every payload kind.
type Message struct {
	ID        string
	ChatID    string
	SenderID  string
	Timestamp time.Time
	IsRead    bool
	IsPinned  bool
	ReplyTo   string
	Reactions Reactions
	Payload   Payload
}

// Type returns the payload type, or "" when no payload is set.
func (m *Message) Type() Type {
	if m.Payload == nil {
		return ""
	}
	return m.Payload.Type()
}

// Validate checks the envelope and the payload.
func (m *Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: missing id", ErrMalformed)
	}
	if m.ChatID == "" {
		return fmt.Errorf("%w: message %s: missing chat id", ErrMalformed, m.ID)
	}
	if m.Payload == nil {
		return fmt.Errorf("%w: message %s: missing payload", ErrMalformed, m.ID)
	}
	if err := m.Payload.validate(); err != nil {
		return fmt.Errorf("%w: message %s: %s: %v", ErrMalformed, m.ID, m.Payload.Type(), err)
	}
	return nil
}

// Clone returns a deep copy so callers can hand out snapshots.
func (m *Message) Clone() *Message {
	c := *m
	c.Reactions = m.Reactions.Clone()
	c.Payload = clonePayload(m.Payload)
	return &c
}

// Preview is a one-line summary for conversation lists.
func (m *Message) Preview() string {
	switch p := m.Payload.(type) {
	case *Text:
		return p.Body
	case *Image:
		if p.Caption != "" {
			return "[ảnh] " + p.Caption
		}
		return "[ảnh]"
	case *File:
		return "[tệp] " + p.Name
	case *Audio:
		return "[âm thanh]"
	case *Poll:
		return "[bình chọn] " + p.Question
	case *GIF:
		return "[GIF]"
	case *Appointment:
		return "[lịch hẹn] " + p.Title
	default:
		return ""
	}
}

// Text is a plain text body.
type Text struct {
	Body string
}

func (*Text) Type() Type { return TypeText }

func (p *Text) validate() error {
	if p.Body == "" {
		return errors.New("empty text")
	}
	return nil
}

// Image is an uploaded picture.
type Image struct {
	URL     string
	Caption string
	Width   int
	Height  int
}

func (*Image) Type() Type { return TypeImage }

func (p *Image) validate() error {
	if p.URL == "" {
		return errors.New("missing image url")
	}
	return nil
}

// File is an arbitrary attachment.
type File struct {
	URL      string
	Name     string
	Size     int64
	MimeType string
}

func (*File) Type() Type { return TypeFile }

func (p *File) validate() error {
	if p.URL == "" || p.Name == "" {
		return errors.New("file needs url and name")
	}
	if p.Size < 0 {
		return errors.New("negative file size")
	}
	return nil
}

// Audio is a voice note or audio clip.
type Audio struct {
	URL      string
	Duration time.Duration
}

func (*Audio) Type() Type { return TypeAudio }

func (p *Audio) validate() error {
	if p.URL == "" {
		return errors.New("missing audio url")
	}
	return nil
}

// GIF is an animated image picked from a GIF provider.
type GIF struct {
	URL        string
	PreviewURL string
}

func (*GIF) Type() Type { return TypeGIF }

func (p *GIF) validate() error {
	if p.URL == "" {
		return errors.New("missing gif url")
	}
	return nil
}

// PollOption is one choice of a poll. Votes is the server's tally.
type PollOption struct {
	ID     string
	Text   string
	Votes  int
	Voters UserSet
}

// Poll is a question with an ordered list of options.
type Poll struct {
	Question       string
	Options        []PollOption
	MultipleChoice bool
}

func (*Poll) Type() Type { return TypePoll }

func (p *Poll) validate() error {
	if p.Question == "" {
		return errors.New("missing poll question")
	}
	if len(p.Options) < 2 {
		return errors.New("poll needs at least two options")
	}
	seen := make(map[string]bool, len(p.Options))
	for _, o := range p.Options {
		if o.ID == "" || seen[o.ID] {
			return fmt.Errorf("bad or duplicate option id %q", o.ID)
		}
		seen[o.ID] = true
		if o.Votes < 0 {
			return fmt.Errorf("option %s: negative votes", o.ID)
		}
	}
	return nil
}

// TotalVotes sums the vote counts of all options.
func (p *Poll) TotalVotes() int {
	n := 0
	for _, o := range p.Options {
		n += o.Votes
	}
	return n
}

// Appointment is a scheduled meeting. Participants not listed in DeclinedBy
// are considered to have accepted.
type Appointment struct {
	ID           string
	Title        string
	At           time.Time
	CreatedBy    string
	Participants []string
	DeclinedBy   UserSet
}

func (*Appointment) Type() Type { return TypeAppointment }

func (p *Appointment) validate() error {
	if p.ID == "" || p.Title == "" {
		return errors.New("appointment needs id and title")
	}
	if p.At.IsZero() {
		return errors.New("appointment has no date")
	}
	for id := range p.DeclinedBy {
		if !slices.Contains(p.Participants, id) {
			return fmt.Errorf("%s declined but is not a participant", id)
		}
	}
	return nil
}

// Decline records that userID will not attend.
func (p *Appointment) Decline(userID string) error {
	if !slices.Contains(p.Participants, userID) {
		return fmt.Errorf("%s is not a participant of %s", userID, p.ID)
	}
	if p.DeclinedBy == nil {
		p.DeclinedBy = UserSet{}
	}
	p.DeclinedBy.Add(userID)
	return nil
}

// Accept withdraws a previous decline.
func (p *Appointment) Accept(userID string) error {
	if !slices.Contains(p.Participants, userID) {
		return fmt.Errorf("%s is not a participant of %s", userID, p.ID)
	}
	p.DeclinedBy.Remove(userID)
	return nil
}

// Accepted returns participants that have not declined, in participant order.
func (p *Appointment) Accepted() []string {
	var out []string
	for _, id := range p.Participants {
		if !p.DeclinedBy.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

func clonePayload(p Payload) Payload {
	switch v := p.(type) {
	case *Text:
		c := *v
		return &c
	case *Image:
		c := *v
		return &c
	case *File:
		c := *v
		return &c
	case *Audio:
		c := *v
		return &c
	case *GIF:
		c := *v
		return &c
	case *Poll:
		c := *v
		c.Options = make([]PollOption, len(v.Options))
		for i, o := range v.Options {
			o.Voters = o.Voters.Clone()
			c.Options[i] = o
		}
		return &c
	case *Appointment:
		c := *v
		c.Participants = slices.Clone(v.Participants)
		c.DeclinedBy = v.DeclinedBy.Clone()
		return &c
	default:
		return nil
	}
}
