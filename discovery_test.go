package ddc

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/ddcio/ddcci/packet"
	"github.com/ddcio/ddcci/retryengine"
	"github.com/stretchr/testify/assert"
)

func discardLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// TestDetectDialectUsesDDCFlag exercises the "unsupported-by-flag"
// dialect: the very first check (Get 0x00) reports unsupported via the
// DDC/CI flag byte.
func TestDetectDialectUsesDDCFlag(t *testing.T) {
	fake := &fakeTransport{responses: []fakeResponse{
		{bytes: vcpReplyWire(t, 0x00, true, 0, 0)},
	}}
	d := newTestDisplay()
	detectDialect(discardLogger(), NewHandle(d), fake, d)

	assert.Equal(t, StateCheckedWorking, d.State())
	assert.True(t, d.Dialect().Has(DialectUsesDDCFlag))
}

// TestDetectDialectUsesAllZeroBytes exercises the all-zero-bytes
// dialect: both reserved features (a) and (b) answer with a plain
// zero-value reply rather than any unsupported signal.
func TestDetectDialectUsesAllZeroBytes(t *testing.T) {
	fake := &fakeTransport{responses: []fakeResponse{
		{bytes: vcpReplyWire(t, 0x00, false, 0, 0)},
		{bytes: vcpReplyWire(t, 0x41, false, 0, 0)},
	}}
	d := newTestDisplay()
	detectDialect(discardLogger(), NewHandle(d), fake, d)

	assert.Equal(t, StateCheckedWorking, d.State())
	assert.True(t, d.Dialect().Has(DialectUsesAllZeroBytes))
}

// TestDetectDialectUsesNullResponse exercises the "unsupported-by-null"
// dialect: check (a) collapses to all-responses-null, which jumps
// straight to check (c), and a working brightness read there confirms
// the monitor's dialect without ever trying check (b).
func TestDetectDialectUsesNullResponse(t *testing.T) {
	maxTries := retryengine.DefaultMaxTries(retryengine.ClassWriteRead)
	responses := make([]fakeResponse, 0, maxTries+1)
	for i := 0; i < maxTries; i++ {
		responses = append(responses, fakeResponse{bytes: nullResponseFrame(packet.HostAddress)})
	}
	responses = append(responses, fakeResponse{bytes: vcpReplyWire(t, 0x10, false, 100, 50)})
	fake := &fakeTransport{responses: responses}
	d := newTestDisplay()
	detectDialect(discardLogger(), NewHandle(d), fake, d)

	assert.Equal(t, StateCheckedWorking, d.State())
	assert.True(t, d.Dialect().Has(DialectUsesNullResponse))
}

// TestDetectDialectNotWorking exercises the "phantom"/no-response
// scenario at the initial-checks level: every attempt, including the
// final check (c), collapses to all-responses-null, so the candidate is
// marked not working.
func TestDetectDialectNotWorking(t *testing.T) {
	maxTries := retryengine.DefaultMaxTries(retryengine.ClassWriteRead)
	responses := make([]fakeResponse, 0, maxTries*2)
	for i := 0; i < maxTries*2; i++ {
		responses = append(responses, fakeResponse{bytes: nullResponseFrame(packet.HostAddress)})
	}
	fake := &fakeTransport{responses: responses}
	d := newTestDisplay()
	detectDialect(discardLogger(), NewHandle(d), fake, d)

	assert.Equal(t, StateCheckedNotWorking, d.State())
}

func TestAssignDisplayNumbers(t *testing.T) {
	working1 := &Display{}
	working1.MarkWorking()
	working2 := &Display{}
	working2.MarkWorking()
	busy := &Display{}
	busy.MarkNotWorking(true)
	notWorking := &Display{}
	notWorking.MarkNotWorking(false)

	assignDisplayNumbers([]*Display{working1, busy, working2, notWorking})

	assert.Equal(t, 1, working1.DispNo)
	assert.Equal(t, 2, working2.DispNo)
	assert.Equal(t, DispBusy, busy.DispNo)
	assert.Equal(t, DispNotWorking, notWorking.DispNo)
}
