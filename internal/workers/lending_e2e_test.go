package workers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"p2p-lending-workers/internal/common/logger"
	"p2p-lending-workers/internal/common/money"
	"p2p-lending-workers/internal/pricing"

	classifyapplicantrisk "p2p-lending-workers/internal/workers/underwriting/classify-applicant-risk"
	computegrossup "p2p-lending-workers/internal/workers/underwriting/compute-gross-up"
	generateamortizationschedule "p2p-lending-workers/internal/workers/underwriting/generate-amortization-schedule"
	loadapplicantsnapshot "p2p-lending-workers/internal/workers/underwriting/load-applicant-snapshot"

	createloanrecord "p2p-lending-workers/internal/workers/origination/create-loan-record"
	validateloanapplication "p2p-lending-workers/internal/workers/origination/validate-loan-application"

	publishloanlisting "p2p-lending-workers/internal/workers/marketplace/publish-loan-listing"
	reservefundingintent "p2p-lending-workers/internal/workers/marketplace/reserve-funding-intent"

	sendloannotification "p2p-lending-workers/internal/workers/notification/send-loan-notification"
)

type fakeSES struct{ sent []*ses.SendEmailInput }

func (f *fakeSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.sent = append(f.sent, params)
	return &ses.SendEmailOutput{}, nil
}

type fakeSNS struct{ sent []*sns.PublishInput }

func (f *fakeSNS) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.sent = append(f.sent, params)
	return &sns.PublishOutput{}, nil
}

// TestLoanLifecycle runs one application through every worker in process order,
// feeding each worker the previous outputs the way the process variables would.
func TestLoanLifecycle(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTestLogger(t)
	policy := pricing.DefaultPolicy()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	esServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_index":"loan-listings","_id":"ignored","_version":1,"result":"created"}`))
	}))
	defer esServer.Close()
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{esServer.URL}})
	require.NoError(t, err)

	// ----- origination: validate -----
	application, err := validateloanapplication.NewHandler(validateloanapplication.LoadConfig(), log).
		Execute(ctx, &validateloanapplication.Input{
			ApplicationID: "app-001",
			LoanApplication: map[string]interface{}{
				"applicantId": "user-001",
				"netAmount":   15000.0,
				"termMonths":  24.0,
				"purpose":     "Debt_Consolidation",
				"contact":     map[string]interface{}{"email": "Jane@Example.com", "phone": "+1 555 123 4567"},
			},
		})
	require.NoError(t, err)
	require.True(t, application.IsValid)
	assert.Equal(t, "debt_consolidation", application.Purpose)

	// ----- underwriting: snapshot, classify, gross-up, schedule -----
	mock.ExpectQuery(`FROM applicant_profiles`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"monthly_income", "card_balance", "card_rate_pct", "tenure_months"}).
			AddRow(12000.0, 5500.0, 24.0, 30.0))

	snapshot, err := loadapplicantsnapshot.NewHandler(loadapplicantsnapshot.LoadConfig(5*time.Minute), db, rdb, log).
		Execute(ctx, &loadapplicantsnapshot.Input{ApplicationID: "app-001"})
	require.NoError(t, err)
	assert.Equal(t, loadapplicantsnapshot.SourceDatabase, snapshot.SnapshotSource)
	assert.True(t, mr.Exists("applicant:snapshot:app-001"))

	risk, err := classifyapplicantrisk.NewHandler(classifyapplicantrisk.LoadConfig(), policy, log).
		Execute(ctx, &classifyapplicantrisk.Input{
			ApplicationID: "app-001",
			MonthlyIncome: snapshot.MonthlyIncome,
			CardBalance:   snapshot.CardBalance,
			CardRatePct:   snapshot.CardRatePct,
			TenureMonths:  snapshot.TenureMonths,
		})
	require.NoError(t, err)
	require.False(t, risk.Rejected)
	assert.Equal(t, "A", risk.RiskTier)
	require.NotNil(t, risk.BorrowerRatePct)
	require.NotNil(t, risk.InvestorYieldPct)

	grossUp, err := computegrossup.NewHandler(computegrossup.LoadConfig(), policy, log).
		Execute(ctx, &computegrossup.Input{
			ApplicationID: "app-001",
			NetAmount:     application.NetAmount,
			RiskTier:      risk.RiskTier,
		})
	require.NoError(t, err)
	assert.False(t, grossUp.MinFeeApplied)
	assert.InDelta(t, grossUp.GrossPrincipal, grossUp.NetAmount+grossUp.OriginationFee, 0.005)
	assert.Greater(t, grossUp.GrossPrincipal, application.NetAmount)

	schedule, err := generateamortizationschedule.NewHandler(generateamortizationschedule.LoadConfig(), policy, log).
		Execute(ctx, &generateamortizationschedule.Input{
			ApplicationID:  "app-001",
			GrossPrincipal: grossUp.GrossPrincipal,
			TermMonths:     application.TermMonths,
			RiskTier:       risk.RiskTier,
			OriginationFee: &grossUp.OriginationFee,
		})
	require.NoError(t, err)
	assert.Equal(t, *risk.BorrowerRatePct, schedule.AnnualRatePct)
	assert.Greater(t, schedule.BlendedMonthlyPayment, schedule.AnnuityPayment)
	assert.InDelta(t, schedule.TotalCreditCost,
		schedule.TotalInterest+schedule.TotalServiceFee+grossUp.OriginationFee, 0.02)

	// ----- origination: persist -----
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO loans`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO audit_log`).WillReturnResult(sqlmock.NewResult(1, 1))

	loan, err := createloanrecord.NewHandler(createloanrecord.LoadConfig(), db, log).
		Execute(ctx, &createloanrecord.Input{
			ApplicationID:         "app-001",
			ApplicantID:           application.ApplicantID,
			RiskTier:              risk.RiskTier,
			BorrowerRatePct:       *risk.BorrowerRatePct,
			InvestorYieldPct:      *risk.InvestorYieldPct,
			NetAmount:             grossUp.NetAmount,
			OriginationFee:        grossUp.OriginationFee,
			GrossPrincipal:        grossUp.GrossPrincipal,
			TermMonths:            schedule.TermMonths,
			AnnuityPayment:        schedule.AnnuityPayment,
			BlendedMonthlyPayment: schedule.BlendedMonthlyPayment,
			TotalCreditCost:       schedule.TotalCreditCost,
		})
	require.NoError(t, err)
	assert.Equal(t, "PENDING_FUNDING", loan.LoanStatus)

	// ----- marketplace: list and fund -----
	listing, err := publishloanlisting.NewHandler(publishloanlisting.LoadConfig("loan-listings"), es, log).
		Execute(ctx, &publishloanlisting.Input{
			LoanID:                loan.LoanID,
			ApplicationID:         "app-001",
			RiskTier:              risk.RiskTier,
			InvestorYieldPct:      *risk.InvestorYieldPct,
			GrossPrincipal:        grossUp.GrossPrincipal,
			TermMonths:            schedule.TermMonths,
			BlendedMonthlyPayment: schedule.BlendedMonthlyPayment,
		})
	require.NoError(t, err)
	assert.Equal(t, "LISTED", listing.LoanStatus)

	reserve := reservefundingintent.NewHandler(reservefundingintent.LoadConfig(15*time.Minute), rdb, log)
	first, err := reserve.Execute(ctx, &reservefundingintent.Input{
		LoanID: loan.LoanID, InvestorID: "inv-1", Amount: 10000, GrossPrincipal: grossUp.GrossPrincipal,
	})
	require.NoError(t, err)
	assert.False(t, first.FullyReserved)
	assert.Equal(t, money.Round(grossUp.GrossPrincipal-10000), first.Remaining)

	_, err = reserve.Execute(ctx, &reservefundingintent.Input{
		LoanID: loan.LoanID, InvestorID: "inv-2", Amount: first.Remaining + 1, GrossPrincipal: grossUp.GrossPrincipal,
	})
	assert.ErrorIs(t, err, reservefundingintent.ErrLimitExceeded)

	second, err := reserve.Execute(ctx, &reservefundingintent.Input{
		LoanID: loan.LoanID, InvestorID: "inv-2", Amount: first.Remaining, GrossPrincipal: grossUp.GrossPrincipal,
	})
	require.NoError(t, err)
	assert.True(t, second.FullyReserved)

	// ----- notification -----
	mock.ExpectQuery(`FROM users`).
		WithArgs("user-001").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "phone", "full_name"}).
			AddRow("user-001", application.ContactEmail, application.ContactPhone, "Jane Doe"))

	sesFake, snsFake := &fakeSES{}, &fakeSNS{}
	notifyCfg := sendloannotification.LoadConfig()
	notifyCfg.EmailEnabled = true
	notifyCfg.SMSEnabled = true
	notifyCfg.FromEmail = "noreply@lending.example"

	notice, err := sendloannotification.NewHandler(notifyCfg, db, sesFake, snsFake, log).
		Execute(ctx, &sendloannotification.Input{
			RecipientID:      application.ApplicantID,
			RecipientType:    sendloannotification.RecipientTypeBorrower,
			NotificationType: sendloannotification.TypeLoanOffer,
			LoanID:           loan.LoanID,
			ApplicationID:    "app-001",
			Priority:         sendloannotification.PriorityHigh,
			Metadata: map[string]interface{}{
				"riskTier":              risk.RiskTier,
				"netAmount":             grossUp.NetAmount,
				"blendedMonthlyPayment": schedule.BlendedMonthlyPayment,
				"termMonths":            schedule.TermMonths,
				"borrowerRatePct":       schedule.AnnualRatePct,
				"totalCreditCost":       schedule.TotalCreditCost,
			},
		})
	require.NoError(t, err)
	assert.Equal(t, sendloannotification.StatusSent, notice.Status)
	require.Len(t, sesFake.sent, 1)
	assert.Equal(t, []string{"jane@example.com"}, sesFake.sent[0].Destination.ToAddresses)
	require.Len(t, snsFake.sent, 1)
	assert.Equal(t, "+15551234567", *snsFake.sent[0].PhoneNumber)

	assert.NoError(t, mock.ExpectationsWereMet())
}
