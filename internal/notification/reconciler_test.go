package notification

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paybridge/internal/gateway"
	"paybridge/internal/models"
)

type fakeChargeStore struct {
	charges     map[string]*models.Charge
	lookups     int
	transitions []string
	failNext    error
}

func (s *fakeChargeStore) FindByGatewayTransactionID(_ context.Context, gatewayName, transactionID string) (*models.Charge, error) {
	s.lookups++
	return s.charges[transactionID], nil
}

func (s *fakeChargeStore) TransitionStatus(_ context.Context, chargeID uint, from, to models.ChargeStatus, _ time.Time) (bool, error) {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return false, err
	}
	s.transitions = append(s.transitions, fmt.Sprintf("%d:%s->%s", chargeID, from, to))
	for _, c := range s.charges {
		if c.ID == chargeID && c.Status == from {
			c.Status = to
			return true, nil
		}
	}
	return false, nil
}

type fakeRefundStore struct {
	refunds map[string]*models.Refund
}

func (s *fakeRefundStore) FindByGatewayReference(_ context.Context, gatewayName, referenceID string) (*models.Refund, error) {
	return s.refunds[referenceID], nil
}

func (s *fakeRefundStore) TransitionStatus(_ context.Context, refundID uint, from, to models.RefundStatus, _ time.Time) (bool, error) {
	for _, r := range s.refunds {
		if r.ID == refundID && r.Status == from {
			r.Status = to
			return true, nil
		}
	}
	return false, nil
}

type recordedOutcome struct {
	transactionID string
	nativeStatus  string
	outcome       string
}

type fakeOutcomeLog struct {
	records []recordedOutcome
}

func (l *fakeOutcomeLog) Record(_ context.Context, gatewayName, transactionID, nativeStatus, outcome, detail string) error {
	l.records = append(l.records, recordedOutcome{transactionID, nativeStatus, outcome})
	return nil
}

func (l *fakeOutcomeLog) outcomes() []string {
	out := make([]string, len(l.records))
	for i, r := range l.records {
		out[i] = r.outcome
	}
	return out
}

// fakeNotifications parses bodies of the form "txid status[;txid status]".
type fakeNotifications struct {
	verifyOK bool
	mapper   *gateway.StatusMapper
	parseErr error
	items    []Envelope
}

func (f *fakeNotifications) Name() string                  { return "fakegw" }
func (f *fakeNotifications) Verify([]byte, string) bool    { return f.verifyOK }
func (f *fakeNotifications) Mapper() *gateway.StatusMapper { return f.mapper }
func (f *fakeNotifications) Parse([]byte) ([]Envelope, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.items, nil
}

func chargeMapper() *gateway.StatusMapper {
	return gateway.NewStatusMapperBuilder().
		MapCharge("CAPTURED", models.ChargeCaptured).
		MapCharge("EXPIRED", models.ChargeExpired).
		MapRefund("REFUNDED", models.Refunded).
		Ignore("SETTLED").
		Build()
}

func newTestReconciler(h GatewayNotifications, charges *fakeChargeStore, refunds *fakeRefundStore, log *fakeOutcomeLog) *Reconciler {
	return NewReconciler(charges, refunds, log, zap.NewNop(), h)
}

func TestReconcilerAppliesNotification(t *testing.T) {
	charges := &fakeChargeStore{charges: map[string]*models.Charge{
		"tx-1": {ID: 1, Status: models.ChargeCaptureSubmitted},
	}}
	log := &fakeOutcomeLog{}
	h := &fakeNotifications{verifyOK: true, mapper: chargeMapper(), items: []Envelope{
		{NativeStatus: "CAPTURED", TransactionID: "tx-1"},
	}}

	r := newTestReconciler(h, charges, &fakeRefundStore{}, log)
	require.NoError(t, r.Handle(context.Background(), "fakegw", []byte("body"), ""))

	assert.Equal(t, models.ChargeCaptured, charges.charges["tx-1"].Status)
	assert.Equal(t, []string{models.NotificationApplied}, log.outcomes())
}

func TestReconcilerReplayIsInert(t *testing.T) {
	charges := &fakeChargeStore{charges: map[string]*models.Charge{
		"tx-1": {ID: 1, Status: models.ChargeCaptureSubmitted},
	}}
	log := &fakeOutcomeLog{}
	h := &fakeNotifications{verifyOK: true, mapper: chargeMapper(), items: []Envelope{
		{NativeStatus: "CAPTURED", TransactionID: "tx-1"},
	}}
	r := newTestReconciler(h, charges, &fakeRefundStore{}, log)

	// First delivery applies, the byte-identical redelivery is inert.
	require.NoError(t, r.Handle(context.Background(), "fakegw", []byte("body"), ""))
	require.NoError(t, r.Handle(context.Background(), "fakegw", []byte("body"), ""))

	assert.Equal(t, models.ChargeCaptured, charges.charges["tx-1"].Status)
	assert.Equal(t, []string{models.NotificationApplied, models.NotificationNotApplicable}, log.outcomes())
	assert.Len(t, charges.transitions, 1)
}

func TestReconcilerAuthenticationFailsClosed(t *testing.T) {
	charges := &fakeChargeStore{charges: map[string]*models.Charge{}}
	h := &fakeNotifications{verifyOK: false, mapper: chargeMapper()}
	r := newTestReconciler(h, charges, &fakeRefundStore{}, &fakeOutcomeLog{})

	err := r.Handle(context.Background(), "fakegw", []byte("body"), "bad-sig")

	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Zero(t, charges.lookups, "no lookup may happen before authentication")
}

func TestReconcilerMalformedPayloadIsAcknowledged(t *testing.T) {
	log := &fakeOutcomeLog{}
	h := &fakeNotifications{verifyOK: true, mapper: chargeMapper(), parseErr: errors.New("bad json")}
	r := newTestReconciler(h, &fakeChargeStore{}, &fakeRefundStore{}, log)

	// Redelivering an unparseable payload will never help, so the gateway
	// gets a success.
	assert.NoError(t, r.Handle(context.Background(), "fakegw", []byte("{"), ""))
	assert.Equal(t, []string{models.NotificationParseFailed}, log.outcomes())
}

func TestReconcilerUnknownChargeIsAcknowledged(t *testing.T) {
	log := &fakeOutcomeLog{}
	h := &fakeNotifications{verifyOK: true, mapper: chargeMapper(), items: []Envelope{
		{NativeStatus: "CAPTURED", TransactionID: "tx-elsewhere"},
	}}
	r := newTestReconciler(h, &fakeChargeStore{charges: map[string]*models.Charge{}}, &fakeRefundStore{}, log)

	assert.NoError(t, r.Handle(context.Background(), "fakegw", []byte("body"), ""))
	assert.Equal(t, []string{models.NotificationNotFound}, log.outcomes())
}

func TestReconcilerUnknownStatusIsRecorded(t *testing.T) {
	log := &fakeOutcomeLog{}
	charges := &fakeChargeStore{charges: map[string]*models.Charge{
		"tx-1": {ID: 1, Status: models.ChargeCaptureSubmitted},
	}}
	h := &fakeNotifications{verifyOK: true, mapper: chargeMapper(), items: []Envelope{
		{NativeStatus: "BRAND_NEW_EVENT", TransactionID: "tx-1"},
	}}
	r := newTestReconciler(h, charges, &fakeRefundStore{}, log)

	assert.NoError(t, r.Handle(context.Background(), "fakegw", []byte("body"), ""))
	assert.Equal(t, []string{models.NotificationUnknownStatus}, log.outcomes())
	assert.Equal(t, models.ChargeCaptureSubmitted, charges.charges["tx-1"].Status)
}

func TestReconcilerBatchItemsAreIndependent(t *testing.T) {
	charges := &fakeChargeStore{
		charges: map[string]*models.Charge{
			"tx-1": {ID: 1, Status: models.ChargeCaptureSubmitted},
			"tx-2": {ID: 2, Status: models.ChargeCaptureSubmitted},
		},
		failNext: errors.New("db down"),
	}
	log := &fakeOutcomeLog{}
	h := &fakeNotifications{verifyOK: true, mapper: chargeMapper(), items: []Envelope{
		{NativeStatus: "CAPTURED", TransactionID: "tx-1"},
		{NativeStatus: "CAPTURED", TransactionID: "tx-2"},
	}}
	r := newTestReconciler(h, charges, &fakeRefundStore{}, log)

	// The first item hits a persistence failure; the second must still be
	// processed, and the overall result is the transient error so the
	// gateway redelivers.
	err := r.Handle(context.Background(), "fakegw", []byte("body"), "")

	assert.Error(t, err)
	assert.Equal(t, models.ChargeCaptured, charges.charges["tx-2"].Status)
}

func TestReconcilerAppliesRefund(t *testing.T) {
	charges := &fakeChargeStore{charges: map[string]*models.Charge{
		"tx-1": {ID: 1, Status: models.ChargeCaptured},
	}}
	refunds := &fakeRefundStore{refunds: map[string]*models.Refund{
		"ref-9": {ID: 9, Status: models.RefundSubmitted},
	}}
	log := &fakeOutcomeLog{}
	h := &fakeNotifications{verifyOK: true, mapper: chargeMapper(), items: []Envelope{
		{NativeStatus: "REFUNDED", TransactionID: "tx-1", RefundReference: "ref-9"},
	}}
	r := newTestReconciler(h, charges, refunds, log)

	require.NoError(t, r.Handle(context.Background(), "fakegw", []byte("body"), ""))
	assert.Equal(t, models.Refunded, refunds.refunds["ref-9"].Status)
	assert.Equal(t, []string{models.NotificationApplied}, log.outcomes())
}

func TestReconcilerIgnoredStatus(t *testing.T) {
	charges := &fakeChargeStore{charges: map[string]*models.Charge{
		"tx-1": {ID: 1, Status: models.ChargeCaptureSubmitted},
	}}
	log := &fakeOutcomeLog{}
	h := &fakeNotifications{verifyOK: true, mapper: chargeMapper(), items: []Envelope{
		{NativeStatus: "SETTLED", TransactionID: "tx-1"},
	}}
	r := newTestReconciler(h, charges, &fakeRefundStore{}, log)

	require.NoError(t, r.Handle(context.Background(), "fakegw", []byte("body"), ""))
	assert.Equal(t, []string{models.NotificationIgnored}, log.outcomes())
	assert.Empty(t, charges.transitions)
}

func TestReconcilerUnknownGateway(t *testing.T) {
	r := NewReconciler(&fakeChargeStore{}, &fakeRefundStore{}, &fakeOutcomeLog{}, zap.NewNop())
	err := r.Handle(context.Background(), "nope", []byte("body"), "")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuthentication)
}
