package messages

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type MessageText struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Messages holds the texts of push notifications. Bodies may use the
// placeholders {processed}, {new} and {updated}.
type Messages struct {
	DatasetRefreshed MessageText `json:"dataset_refreshed"`
}

// Default returns the built-in texts.
func Default() *Messages {
	return &Messages{
		DatasetRefreshed: MessageText{
			Title: "Data updated",
			Body:  "{processed} facilities processed ({new} new, {updated} updated).",
		},
	}
}

// Load reads a notifications JSON file. Texts missing from the file keep
// their defaults.
func Load(path string) (*Messages, error) {
	msgs := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages file: %w", err)
	}
	var loaded Messages
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse messages file: %w", err)
	}

	if loaded.DatasetRefreshed.Title != "" {
		msgs.DatasetRefreshed.Title = loaded.DatasetRefreshed.Title
	}
	if loaded.DatasetRefreshed.Body != "" {
		msgs.DatasetRefreshed.Body = loaded.DatasetRefreshed.Body
	}
	return msgs, nil
}

// Render fills the count placeholders of the body.
func (m MessageText) Render(processed, inserted, updated int) MessageText {
	r := strings.NewReplacer(
		"{processed}", strconv.Itoa(processed),
		"{new}", strconv.Itoa(inserted),
		"{updated}", strconv.Itoa(updated),
	)
	return MessageText{Title: r.Replace(m.Title), Body: r.Replace(m.Body)}
}
