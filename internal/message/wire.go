package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/matheus3301/tradechat/internal/isotime"
)

// Wire is the backend DTO for a chat message. Exactly one payload field must
// be set, and it must match Type.
type Wire struct {
	ID        string              `json:"id"`
	ChatID    string              `json:"chatId"`
	SenderID  string              `json:"senderId"`
	Type      Type                `json:"type"`
	Timestamp isotime.Time        `json:"timestamp"`
	IsRead    bool                `json:"isRead"`
	IsPinned  bool                `json:"isPinned"`
	ReplyTo   string              `json:"replyTo,omitempty"`
	Reactions map[string][]string `json:"reactions,omitempty"`

	Text        string           `json:"text,omitempty"`
	Image       *wireImage       `json:"image,omitempty"`
	File        *wireFile        `json:"file,omitempty"`
	Audio       *wireAudio       `json:"audio,omitempty"`
	Poll        *wirePoll        `json:"poll,omitempty"`
	GIF         *wireGIF         `json:"gif,omitempty"`
	Appointment *wireAppointment `json:"appointment,omitempty"`
}

type wireImage struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

type wireFile struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType,omitempty"`
}

type wireAudio struct {
	URL             string  `json:"url"`
	DurationSeconds float64 `json:"durationSeconds"`
}

type wirePollOption struct {
	ID     string   `json:"id"`
	Text   string   `json:"text"`
	Votes  int      `json:"votes"`
	Voters []string `json:"voters,omitempty"`
}

type wirePoll struct {
	Question       string           `json:"question"`
	Options        []wirePollOption `json:"options"`
	MultipleChoice bool             `json:"multipleChoice,omitempty"`
}

type wireGIF struct {
	URL        string `json:"url"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

type wireAppointment struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	DateTime     isotime.Time `json:"datetime"`
	CreatedBy    string       `json:"createdBy"`
	Participants []string     `json:"participants"`
	DeclinedBy   []string     `json:"declinedBy,omitempty"`
}

// populated lists which payload fields are non-empty.
func (w *Wire) populated() []Type {
	var set []Type
	if w.Text != "" {
		set = append(set, TypeText)
	}
	if w.Image != nil {
		set = append(set, TypeImage)
	}
	if w.File != nil {
		set = append(set, TypeFile)
	}
	if w.Audio != nil {
		set = append(set, TypeAudio)
	}
	if w.Poll != nil {
		set = append(set, TypePoll)
	}
	if w.GIF != nil {
		set = append(set, TypeGIF)
	}
	if w.Appointment != nil {
		set = append(set, TypeAppointment)
	}
	return set
}

// FromWire converts and validates a DTO.
func FromWire(w *Wire) (*Message, error) {
	set := w.populated()
	if len(set) != 1 || set[0] != w.Type {
		return nil, fmt.Errorf("%w: message %s: type %q with payload fields %v", ErrMalformed, w.ID, w.Type, set)
	}

	m := &Message{
		ID:        w.ID,
		ChatID:    w.ChatID,
		SenderID:  w.SenderID,
		Timestamp: w.Timestamp.Time,
		IsRead:    w.IsRead,
		IsPinned:  w.IsPinned,
		ReplyTo:   w.ReplyTo,
		Reactions: Reactions{},
	}
	for symbol, users := range w.Reactions {
		for _, u := range users {
			m.Reactions.Add(symbol, u)
		}
	}

	switch w.Type {
	case TypeText:
		m.Payload = &Text{Body: w.Text}
	case TypeImage:
		m.Payload = &Image{URL: w.Image.URL, Caption: w.Image.Caption, Width: w.Image.Width, Height: w.Image.Height}
	case TypeFile:
		m.Payload = &File{URL: w.File.URL, Name: w.File.Name, Size: w.File.Size, MimeType: w.File.MimeType}
	case TypeAudio:
		m.Payload = &Audio{URL: w.Audio.URL, Duration: time.Duration(w.Audio.DurationSeconds * float64(time.Second))}
	case TypePoll:
		p := &Poll{Question: w.Poll.Question, MultipleChoice: w.Poll.MultipleChoice}
		for _, o := range w.Poll.Options {
			p.Options = append(p.Options, PollOption{ID: o.ID, Text: o.Text, Votes: o.Votes, Voters: NewUserSet(o.Voters...)})
		}
		m.Payload = p
	case TypeGIF:
		m.Payload = &GIF{URL: w.GIF.URL, PreviewURL: w.GIF.PreviewURL}
	case TypeAppointment:
		a := w.Appointment
		m.Payload = &Appointment{
			ID:           a.ID,
			Title:        a.Title,
			At:           a.DateTime.Time,
			CreatedBy:    a.CreatedBy,
			Participants: a.Participants,
			DeclinedBy:   NewUserSet(a.DeclinedBy...),
		}
	default:
		return nil, fmt.Errorf("%w: message %s: unknown type %q", ErrMalformed, w.ID, w.Type)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// ToWire converts a message to its DTO.
func ToWire(m *Message) *Wire {
	w := &Wire{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Type:      m.Type(),
		Timestamp: isotime.Time{Time: m.Timestamp},
		IsRead:    m.IsRead,
		IsPinned:  m.IsPinned,
		ReplyTo:   m.ReplyTo,
	}
	if len(m.Reactions) > 0 {
		w.Reactions = make(map[string][]string, len(m.Reactions))
		for symbol, users := range m.Reactions {
			w.Reactions[symbol] = users.Sorted()
		}
	}

	switch p := m.Payload.(type) {
	case *Text:
		w.Text = p.Body
	case *Image:
		w.Image = &wireImage{URL: p.URL, Caption: p.Caption, Width: p.Width, Height: p.Height}
	case *File:
		w.File = &wireFile{URL: p.URL, Name: p.Name, Size: p.Size, MimeType: p.MimeType}
	case *Audio:
		w.Audio = &wireAudio{URL: p.URL, DurationSeconds: p.Duration.Seconds()}
	case *Poll:
		wp := &wirePoll{Question: p.Question, MultipleChoice: p.MultipleChoice}
		for _, o := range p.Options {
			wp.Options = append(wp.Options, wirePollOption{ID: o.ID, Text: o.Text, Votes: o.Votes, Voters: o.Voters.Sorted()})
		}
		w.Poll = wp
	case *GIF:
		w.GIF = &wireGIF{URL: p.URL, PreviewURL: p.PreviewURL}
	case *Appointment:
		w.Appointment = &wireAppointment{
			ID:           p.ID,
			Title:        p.Title,
			DateTime:     isotime.Time{Time: p.At},
			CreatedBy:    p.CreatedBy,
			Participants: p.Participants,
			DeclinedBy:   p.DeclinedBy.Sorted(),
		}
	}
	return w
}

// MarshalJSON encodes the message in its wire form.
func (m *Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(ToWire(m))
}

// UnmarshalJSON decodes and validates the wire form.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w Wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	decoded, err := FromWire(&w)
	if err != nil {
		return err
	}
	*m = *decoded
	return nil
}
