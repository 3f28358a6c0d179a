package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"costbot/internal/domain"
)

type fakeInvoker struct {
	err      error
	invoked  int
	lastTask domain.TaskRecord
}

func (f *fakeInvoker) Invoke(_ context.Context, task domain.TaskRecord) error {
	f.invoked++
	f.lastTask = task
	return f.err
}

func mustNewDispatcher(t *testing.T, invoker AsyncInvoker, maxDays int) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(invoker, maxDays)
	require.NoError(t, err)
	return d
}

func TestNewDispatcher_NilInvoker(t *testing.T) {
	_, err := NewDispatcher(nil, 60)
	require.Error(t, err)
}

func TestParseText_NumericPrefix(t *testing.T) {
	days, query := ParseText("3 why is EC2 expensive", 60)
	require.Equal(t, 3, days)
	require.Equal(t, "why is EC2 expensive", query)
}

func TestParseText_TabDelimitedPrefix(t *testing.T) {
	days, query := ParseText("3\twhy is EC2 expensive", 60)
	require.Equal(t, 3, days)
	require.Equal(t, "why is EC2 expensive", query)
}

func TestParseText_NonNumericText(t *testing.T) {
	days, query := ParseText("why is storage growing", 60)
	require.Equal(t, 7, days)
	require.Equal(t, "why is storage growing", query)
}

func TestParseText_ClampsToBounds(t *testing.T) {
	days, _ := ParseText("90 breakdown", 60)
	require.Equal(t, 60, days)

	days, _ = ParseText("0 breakdown", 60)
	require.Equal(t, 1, days)

	days, _ = ParseText("-5 breakdown", 60)
	require.Equal(t, 1, days)
}

func TestParseText_EmptyText_Defaults(t *testing.T) {
	days, query := ParseText("", 60)
	require.Equal(t, 7, days)
	require.Equal(t, defaultQuery, query)
}

func TestParseText_NumberOnly_DefaultsQuery(t *testing.T) {
	days, query := ParseText("14", 60)
	require.Equal(t, 14, days)
	require.Equal(t, defaultQuery, query)
}

func TestHandle_DispatchesTaskAndAcks(t *testing.T) {
	invoker := &fakeInvoker{}
	d := mustNewDispatcher(t, invoker, 60)

	ack := d.Handle(context.Background(), domain.SlashCommand{
		Text:        "3 why is EC2 expensive",
		UserName:    "dana",
		UserID:      "U123",
		ResponseURL: "https://hooks.example.com/T1",
	})

	require.Equal(t, 1, invoker.invoked)
	require.Equal(t, domain.TaskRecord{
		CallbackURL: "https://hooks.example.com/T1",
		Days:        3,
		Query:       "why is EC2 expensive",
		UserName:    "dana",
		UserID:      "U123",
	}, invoker.lastTask)
	require.Contains(t, ack, "3 days")
}

func TestHandle_DispatchFailure_StillAcks(t *testing.T) {
	invoker := &fakeInvoker{err: errors.New("invoke throttled")}
	d := mustNewDispatcher(t, invoker, 60)

	ack := d.Handle(context.Background(), domain.SlashCommand{
		Text:        "7 overview",
		UserID:      "U123",
		ResponseURL: "https://hooks.example.com/T1",
	})

	require.Equal(t, 1, invoker.invoked)
	require.Contains(t, ack, "7 days")
}
