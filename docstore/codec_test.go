package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clip struct {
	ID        string   `firestore:"-"`
	Title     string   `firestore:"title"`
	Views     int64    `firestore:"views"`
	Rating    float64  `firestore:"rating"`
	Published bool     `firestore:"published"`
	Tags      []string `firestore:"tags"`
	Internal  string
}

func TestEncode(t *testing.T) {
	fields, err := Encode(clip{Title: "robot", Views: 7, Rating: 4.5, Published: true, Tags: []string{"ai"}, Internal: "skip"})
	require.NoError(t, err)

	assert.Equal(t, "robot", fields["title"])
	assert.Equal(t, int64(7), fields["views"])
	assert.NotContains(t, fields, "ID")
	assert.NotContains(t, fields, "Internal")
}

func TestEncodeRejectsNonStruct(t *testing.T) {
	_, err := Encode("nope")
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	fields := map[string]interface{}{
		"title":     "robot",
		"views":     int64(7),
		"rating":    4.5,
		"published": true,
		"tags":      []interface{}{"ai", "dance"},
	}

	var c clip
	require.NoError(t, Decode(fields, &c))
	assert.Equal(t, "robot", c.Title)
	assert.Equal(t, int64(7), c.Views)
	assert.Equal(t, 4.5, c.Rating)
	assert.True(t, c.Published)
	assert.Equal(t, []string{"ai", "dance"}, c.Tags)
}

func TestDecodeNumericConversions(t *testing.T) {
	type counts struct {
		Small int     `firestore:"small"`
		Big   float64 `firestore:"big"`
	}

	var c counts
	// The wire hands back int64 for integers regardless of the struct kind.
	require.NoError(t, Decode(map[string]interface{}{"small": int64(3), "big": int64(9)}, &c))
	assert.Equal(t, 3, c.Small)
	assert.Equal(t, 9.0, c.Big)
}

func TestDecodeMissingFieldsLeaveDefaults(t *testing.T) {
	c := clip{Title: "keep"}
	require.NoError(t, Decode(map[string]interface{}{"views": int64(1)}, &c))
	assert.Equal(t, "keep", c.Title)
	assert.Equal(t, int64(1), c.Views)
}

func TestDecodeTime(t *testing.T) {
	type event struct {
		At time.Time `firestore:"at"`
	}
	now := time.Now()

	var e event
	require.NoError(t, Decode(map[string]interface{}{"at": now}, &e))
	assert.True(t, e.At.Equal(now))
}

func TestDecodeTypeMismatch(t *testing.T) {
	var c clip
	err := Decode(map[string]interface{}{"title": 42}, &c)
	assert.Error(t, err)
}

func TestSetIDField(t *testing.T) {
	c := &clip{}
	SetIDField(c, "abc123")
	assert.Equal(t, "abc123", c.ID)

	// No ID field is a no-op, not a panic.
	type plain struct{ Name string }
	SetIDField(&plain{}, "x")
}
