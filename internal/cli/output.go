package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to stdout
func NewOutput(format string) *Output {
	return &Output{format: format, w: os.Stdout}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Account:
		o.printAccount(v)
	case AuthResult:
		o.printAuthResult(v)
	case ProgressRecord:
		o.printRecord(v)
	case CompletionResult:
		o.printCompletion(v)
	case LayoutResult:
		o.printLayout(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Account response type (matches API)
type Account struct {
	Identity    string    `json:"identity"`
	DisplayName string    `json:"display_name"`
	Username    string    `json:"username,omitempty"`
	IsGuest     bool      `json:"is_guest"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuthResult combines account and token
type AuthResult struct {
	Account      Account   `json:"account"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ProgressRecord response type
type ProgressRecord struct {
	Owner             string   `json:"owner"`
	CompletedLessons  []string `json:"completed_lessons"`
	Points            uint32   `json:"points"`
	AllocatedBalance  uint64   `json:"allocated_balance"`
	LayoutTag         uint8    `json:"layout_tag"`
	RemainingCapacity int      `json:"remaining_capacity"`
}

// CompletionResult response type
type CompletionResult struct {
	Outcome string         `json:"outcome"`
	Record  ProgressRecord `json:"record"`
}

// LayoutResult response type
type LayoutResult struct {
	Capacity          int   `json:"capacity"`
	MaxLessonIDLength int   `json:"max_lesson_id_length"`
	RecordSize        int   `json:"record_size"`
	Rewards           bool  `json:"rewards"`
	Tag               uint8 `json:"tag"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (o *Output) printAccount(a Account) {
	fmt.Fprintf(o.w, "Account: %s\n", a.DisplayName)
	fmt.Fprintf(o.w, "Identity: %s\n", a.Identity)
	if a.Username != "" {
		fmt.Fprintf(o.w, "Username: %s\n", a.Username)
	}
	fmt.Fprintf(o.w, "Guest: %s\n", yesNo(a.IsGuest))
}

func (o *Output) printAuthResult(a AuthResult) {
	o.printAccount(a.Account)
	fmt.Fprintf(o.w, "Token: %s\n", a.SessionToken)
}

func (o *Output) printRecord(r ProgressRecord) {
	fmt.Fprintf(o.w, "Owner: %s\n", r.Owner)
	fmt.Fprintf(o.w, "Points: %d\n", r.Points)
	if r.LayoutTag == 2 {
		fmt.Fprintf(o.w, "Allocated Balance: %d\n", r.AllocatedBalance)
	}
	fmt.Fprintf(o.w, "Lessons (%d, %d slots free):\n", len(r.CompletedLessons), r.RemainingCapacity)
	for i, id := range r.CompletedLessons {
		fmt.Fprintf(o.w, "  %d. %s\n", i+1, id)
	}
}

func (o *Output) printCompletion(c CompletionResult) {
	switch c.Outcome {
	case "applied":
		fmt.Fprintln(o.w, "Lesson completed")
	case "noop":
		fmt.Fprintln(o.w, "Lesson already completed, nothing awarded")
	default:
		fmt.Fprintf(o.w, "Outcome: %s\n", c.Outcome)
	}
	o.printRecord(c.Record)
}

func (o *Output) printLayout(l LayoutResult) {
	fmt.Fprintf(o.w, "Capacity: %d lessons\n", l.Capacity)
	fmt.Fprintf(o.w, "Max Lesson ID Length: %d bytes\n", l.MaxLessonIDLength)
	fmt.Fprintf(o.w, "Record Size: %d bytes\n", l.RecordSize)
	fmt.Fprintf(o.w, "Rewards: %s\n", yesNo(l.Rewards))
	fmt.Fprintf(o.w, "Tag: %d\n", l.Tag)
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Fprintf(o.w, "Status: %s\n", h.Status)
}
