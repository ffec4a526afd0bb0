package message

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textMessage(id string) *Message {
	return &Message{ID: id, ChatID: "chat-1", SenderID: "alice", Timestamp: time.Now(), Payload: &Text{Body: "hi"}}
}

func TestValidate(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		payload Payload
		ok      bool
	}{
		{"text", &Text{Body: "hello"}, true},
		{"empty text", &Text{}, false},
		{"image", &Image{URL: "https://cdn/x.png"}, true},
		{"image without url", &Image{Caption: "x"}, false},
		{"file", &File{URL: "https://cdn/a.pdf", Name: "a.pdf", Size: 10}, true},
		{"file without name", &File{URL: "https://cdn/a.pdf"}, false},
		{"audio", &Audio{URL: "https://cdn/a.ogg", Duration: 3 * time.Second}, true},
		{"gif", &GIF{URL: "https://gif/1"}, true},
		{"poll", &Poll{Question: "BTC > 100k?", Options: []PollOption{{ID: "y", Text: "yes"}, {ID: "n", Text: "no"}}}, true},
		{"poll with one option", &Poll{Question: "q", Options: []PollOption{{ID: "y"}}}, false},
		{"poll duplicate option", &Poll{Question: "q", Options: []PollOption{{ID: "y"}, {ID: "y"}}}, false},
		{"appointment", &Appointment{ID: "a1", Title: "OTC desk", At: at, Participants: []string{"bob"}}, true},
		{"appointment decline outsider", &Appointment{ID: "a1", Title: "t", At: at, Participants: []string{"bob"}, DeclinedBy: NewUserSet("eve")}, false},
		{"appointment without date", &Appointment{ID: "a1", Title: "t"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := textMessage("m1")
			m.Payload = tt.payload
			err := m.Validate()
			if tt.ok {
				assert.NoError(t, err)
				assert.Equal(t, tt.payload.Type(), m.Type())
			} else {
				assert.ErrorIs(t, err, ErrMalformed)
			}
		})
	}
}

func TestValidateEnvelope(t *testing.T) {
	m := textMessage("")
	assert.ErrorIs(t, m.Validate(), ErrMalformed)

	m = textMessage("m1")
	m.Payload = nil
	assert.ErrorIs(t, m.Validate(), ErrMalformed)
	assert.Equal(t, Type(""), m.Type())
}

func TestReactionsIdempotent(t *testing.T) {
	r := Reactions{}
	require.True(t, r.Add("👍", "alice"))
	require.False(t, r.Add("👍", "alice"))
	r.Add("👍", "bob")
	r.Add("🔥", "alice")

	assert.Equal(t, 2, r.Count("👍"))
	assert.Equal(t, []string{"alice", "bob"}, r["👍"].Sorted())
	assert.Equal(t, []string{"👍", "🔥"}, r.Symbols())

	assert.True(t, r.Remove("🔥", "alice"))
	assert.False(t, r.Remove("🔥", "alice"))
	_, ok := r["🔥"]
	assert.False(t, ok, "empty symbol should be dropped")
}

func TestAppointmentDeclineAccept(t *testing.T) {
	a := &Appointment{ID: "a1", Title: "Settlement call", At: time.Now(), Participants: []string{"alice", "bob", "carol"}}

	require.NoError(t, a.Decline("bob"))
	require.NoError(t, a.Decline("bob"))
	assert.Equal(t, []string{"alice", "carol"}, a.Accepted())
	assert.Len(t, a.DeclinedBy, 1)

	require.NoError(t, a.Accept("bob"))
	assert.Equal(t, []string{"alice", "bob", "carol"}, a.Accepted())
	assert.False(t, a.DeclinedBy.Has("bob"))

	assert.Error(t, a.Decline("mallory"))
	assert.Error(t, a.Accept("mallory"))
}

func TestCloneIsDeep(t *testing.T) {
	m := textMessage("m1")
	m.Payload = &Poll{Question: "q", Options: []PollOption{{ID: "a", Voters: NewUserSet("x")}, {ID: "b"}}}
	m.Reactions = Reactions{}
	m.Reactions.Add("👍", "alice")

	c := m.Clone()
	c.Reactions.Add("👍", "bob")
	c.Payload.(*Poll).Options[0].Voters.Add("y")
	c.Payload.(*Poll).Options[1].Votes = 9

	assert.Equal(t, 1, m.Reactions.Count("👍"))
	assert.Len(t, m.Payload.(*Poll).Options[0].Voters, 1)
	assert.Equal(t, 0, m.Payload.(*Poll).Options[1].Votes)
}

func TestPreview(t *testing.T) {
	m := textMessage("m1")
	assert.Equal(t, "hi", m.Preview())

	m.Payload = &File{URL: "u", Name: "report.pdf"}
	assert.Equal(t, "[tệp] report.pdf", m.Preview())

	m.Payload = &Poll{Question: "Up or down?"}
	assert.Equal(t, "[bình chọn] Up or down?", m.Preview())
}

func TestPollTotalVotes(t *testing.T) {
	p := &Poll{Options: []PollOption{{ID: "a", Votes: 3}, {ID: "b", Votes: 4}}}
	assert.Equal(t, 7, p.TotalVotes())
}

func TestErrMalformedWrapped(t *testing.T) {
	m := textMessage("m1")
	m.Payload = &Text{}
	err := m.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
	assert.Contains(t, err.Error(), "m1")
}
