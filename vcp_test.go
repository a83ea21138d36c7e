package ddc

import (
	"testing"

	"github.com/ddcio/ddcci/packet"
	"github.com/ddcio/ddcci/retryengine"
	"github.com/ddcio/ddcci/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGetVCPHappyPath exercises spec.md §8's "happy-path get" scenario
// end to end through the real wire decode and classification.
func TestGetVCPHappyPath(t *testing.T) {
	fake := &fakeTransport{responses: []fakeResponse{
		{bytes: vcpReplyWire(t, 0x10, false, 100, 50)},
	}}
	h := NewHandle(newTestDisplay())

	val, errInfo := GetVCP(h, fake, 0x10)
	require.Nil(t, errInfo)
	assert.Equal(t, VCPValue{FeatureCode: 0x10, Current: 50, Maximum: 100}, val)
	assert.Len(t, fake.writes, 1)
}

// TestGetVCPUnsupportedByFlag exercises the "unsupported-by-flag"
// scenario: the monitor answers with a normal reply whose unsupported
// byte is set.
func TestGetVCPUnsupportedByFlag(t *testing.T) {
	fake := &fakeTransport{responses: []fakeResponse{
		{bytes: vcpReplyWire(t, 0x10, true, 0, 0)},
	}}
	h := NewHandle(newTestDisplay())

	_, errInfo := GetVCP(h, fake, 0x10)
	require.NotNil(t, errInfo)
	assert.Equal(t, status.StatusReportedUnsupported, errInfo.Status)
	assert.Len(t, fake.writes, 1, "a reported-unsupported reply must not be retried")
}

// TestGetVCPUnsupportedByNull exercises the "unsupported-by-null"
// scenario: every attempt gets a genuine null-response frame, and the
// retry engine's all-responses-null collapse rule (spec.md §4.3) fires.
func TestGetVCPUnsupportedByNull(t *testing.T) {
	maxTries := retryengine.DefaultMaxTries(retryengine.ClassWriteRead)
	responses := make([]fakeResponse, maxTries)
	for i := range responses {
		responses[i] = fakeResponse{bytes: nullResponseFrame(packet.HostAddress)}
	}
	fake := &fakeTransport{responses: responses}
	h := NewHandle(newTestDisplay())

	_, errInfo := GetVCP(h, fake, 0x10)
	require.NotNil(t, errInfo)
	assert.Equal(t, status.StatusAllResponsesNull, errInfo.Status)
	assert.Len(t, fake.writes, maxTries)
}

// TestGetVCPRetryThenSuccess exercises the "retry-then-success"
// scenario: a garbled short read followed by a valid reply.
func TestGetVCPRetryThenSuccess(t *testing.T) {
	fake := &fakeTransport{responses: []fakeResponse{
		{bytes: []byte{0x00, 0x11, 0x22, 0x33}}, // garbled, neither 3 bytes nor a valid frame
		{bytes: vcpReplyWire(t, 0x10, false, 100, 75)},
	}}
	h := NewHandle(newTestDisplay())

	val, errInfo := GetVCP(h, fake, 0x10)
	require.Nil(t, errInfo)
	assert.Equal(t, uint16(75), val.Current)
	assert.Len(t, fake.writes, 2)
}

// TestSetVCPWithVerification exercises the "set-with-verification"
// scenario: the set write itself carries no reply, and verification
// reads the value back through a second full transaction.
func TestSetVCPWithVerification(t *testing.T) {
	fake := &fakeTransport{responses: []fakeResponse{
		{bytes: vcpReplyWire(t, 0x10, false, 100, 42)},
	}}
	h := NewHandle(newTestDisplay())

	errInfo := SetVCP(h, fake, 0x10, 42, true)
	require.Nil(t, errInfo)
	// One write for the Set, one write+read for the verifying GetVCP.
	assert.Len(t, fake.writes, 2)
}

// TestSetVCPVerificationMismatch exercises a verification failure: the
// readback disagrees with what was written.
func TestSetVCPVerificationMismatch(t *testing.T) {
	fake := &fakeTransport{responses: []fakeResponse{
		{bytes: vcpReplyWire(t, 0x10, false, 100, 99)},
	}}
	h := NewHandle(newTestDisplay())

	errInfo := SetVCP(h, fake, 0x10, 42, true)
	require.NotNil(t, errInfo)
	assert.Equal(t, status.StatusVerificationFailed, errInfo.Status)
}
