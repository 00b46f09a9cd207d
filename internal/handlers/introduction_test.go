package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/talentbridge-io/talentbridge/internal/auth"
	"github.com/talentbridge-io/talentbridge/internal/models"
)

const testMessage = "We are building the data platform team at Acme and your background looks like a strong match for the role."

func (suite *HandlerTestSuite) TestCreateIntroduction() {
	payload := models.AddIntroduction{
		JobRoleID:   suite.testRole.ID,
		CandidateID: suite.testCandidate.ID,
		Message:     testMessage,
	}
	_, res, err := suite.ServeRequest(
		http.MethodPost, "/", "/",
		suite.sponsorActor(), suite.api.CreateIntroduction,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusCreated, res.Code)

	var actual models.IntroductionRequest
	suite.Require().NoError(json.Unmarshal(res.Body.Bytes(), &actual))
	suite.Equal(models.IntroductionPending, actual.Status)
	suite.Equal(suite.testCandidate.ID, actual.CandidateID)
	suite.WithinDuration(actual.SentAt.Add(models.IntroductionTTL), actual.ExpiresAt, time.Second)

	// one credit was spent
	suite.Equal(4, suite.orgBalance(suite.testOrg.ID))

	// the candidate got a feed entry
	items, err := suite.api.notifier.ListForUser(context.Background(), suite.testCandidate.ID, 10)
	suite.Require().NoError(err)
	suite.Require().Len(items, 1)
	suite.Equal(models.NotificationIntroductionReceived, items[0].Type)
}

func (suite *HandlerTestSuite) TestCreateIntroductionMessageLength() {
	for _, message := range []string{
		"too short",
		strings.Repeat("x", models.IntroductionMessageMaxLen+1),
		// the bounds count characters, not bytes
		strings.Repeat("é", models.IntroductionMessageMinLen-1),
	} {
		payload := models.AddIntroduction{
			JobRoleID:   suite.testRole.ID,
			CandidateID: suite.testCandidate.ID,
			Message:     message,
		}
		_, res, err := suite.ServeRequest(
			http.MethodPost, "/", "/",
			suite.sponsorActor(), suite.api.CreateIntroduction,
			suite.jsonBody(payload),
		)
		suite.Require().NoError(err)
		suite.Equal(http.StatusBadRequest, res.Code)
	}
	suite.Equal(5, suite.orgBalance(suite.testOrg.ID))

	// a multibyte message over the cap in bytes but not in characters
	payload := models.AddIntroduction{
		JobRoleID:   suite.testRole.ID,
		CandidateID: suite.testCandidate.ID,
		Message:     strings.Repeat("é", models.IntroductionMessageMaxLen),
	}
	_, res, err := suite.ServeRequest(
		http.MethodPost, "/", "/",
		suite.sponsorActor(), suite.api.CreateIntroduction,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Equal(http.StatusCreated, res.Code)
}

func (suite *HandlerTestSuite) TestCreateIntroductionRequiresPermission() {
	sponsor := suite.testSponsor
	sponsor.CanSendIntroductions = false
	actor := suite.sponsorActor()
	actor.Sponsor = &sponsor

	payload := models.AddIntroduction{
		JobRoleID:   suite.testRole.ID,
		CandidateID: suite.testCandidate.ID,
		Message:     testMessage,
	}
	_, res, err := suite.ServeRequest(
		http.MethodPost, "/", "/",
		actor, suite.api.CreateIntroduction,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Equal(http.StatusForbidden, res.Code)
}

func (suite *HandlerTestSuite) TestCreateIntroductionRoleNotActive() {
	paused := models.JobRole{
		OrganizationID: suite.testOrg.ID,
		CreatedBy:      suite.testSponsor.ID,
		Title:          "Paused Role",
		Status:         models.JobRolePaused,
	}
	suite.Require().NoError(suite.api.db.Create(&paused).Error)

	payload := models.AddIntroduction{
		JobRoleID:   paused.ID,
		CandidateID: suite.testCandidate.ID,
		Message:     testMessage,
	}
	_, res, err := suite.ServeRequest(
		http.MethodPost, "/", "/",
		suite.sponsorActor(), suite.api.CreateIntroduction,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusConflict, res.Code)

	var body models.InvalidStateError
	suite.Require().NoError(json.Unmarshal(res.Body.Bytes(), &body))
	suite.Equal("paused", body.Current)
	suite.Equal(5, suite.orgBalance(suite.testOrg.ID))
}

func (suite *HandlerTestSuite) TestCreateIntroductionDuplicate() {
	suite.seedIntroduction(models.IntroductionPending, time.Now().Add(time.Hour))

	payload := models.AddIntroduction{
		JobRoleID:   suite.testRole.ID,
		CandidateID: suite.testCandidate.ID,
		Message:     testMessage,
	}
	_, res, err := suite.ServeRequest(
		http.MethodPost, "/", "/",
		suite.sponsorActor(), suite.api.CreateIntroduction,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Equal(http.StatusConflict, res.Code)
	suite.Equal(5, suite.orgBalance(suite.testOrg.ID))
}

func (suite *HandlerTestSuite) TestCreateIntroductionConcurrentDuplicate() {
	payload, err := json.Marshal(models.AddIntroduction{
		JobRoleID:   suite.testRole.ID,
		CandidateID: suite.testCandidate.ID,
		Message:     testMessage,
	})
	suite.Require().NoError(err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	actor := suite.sponsorActor()
	r.Use(func(c *gin.Context) {
		c.Set(auth.ActorKey, actor)
		c.Next()
	})
	r.POST("/", suite.api.CreateIntroduction)

	const senders = 4
	codes := make(chan int, senders)
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
			if err != nil {
				codes <- 0
				return
			}
			req.Header.Set("Content-Type", "application/json")
			res := httptest.NewRecorder()
			r.ServeHTTP(res, req)
			codes <- res.Code
		}()
	}
	wg.Wait()
	close(codes)

	created := 0
	conflicts := 0
	for code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		}
	}
	suite.Equal(1, created)
	suite.Equal(senders-1, conflicts)

	// exactly one row landed and only the winner's credit was spent
	var count int64
	suite.api.db.Model(&models.IntroductionRequest{}).Count(&count)
	suite.Equal(int64(1), count)
	suite.Equal(4, suite.orgBalance(suite.testOrg.ID))
}

func (suite *HandlerTestSuite) TestCreateIntroductionAfterDeclineAllowed() {
	// terminal statuses do not count as duplicates
	suite.seedIntroduction(models.IntroductionDeclined, time.Now().Add(time.Hour))

	payload := models.AddIntroduction{
		JobRoleID:   suite.testRole.ID,
		CandidateID: suite.testCandidate.ID,
		Message:     testMessage,
	}
	_, res, err := suite.ServeRequest(
		http.MethodPost, "/", "/",
		suite.sponsorActor(), suite.api.CreateIntroduction,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Equal(http.StatusCreated, res.Code)
}

func (suite *HandlerTestSuite) TestCreateIntroductionInsufficientCredits() {
	res := suite.api.db.Model(&models.Organization{}).
		Where("id = ?", suite.testOrg.ID).
		Update("credit_balance", 0)
	suite.Require().NoError(res.Error)

	payload := models.AddIntroduction{
		JobRoleID:   suite.testRole.ID,
		CandidateID: suite.testCandidate.ID,
		Message:     testMessage,
	}
	_, rec, err := suite.ServeRequest(
		http.MethodPost, "/", "/",
		suite.sponsorActor(), suite.api.CreateIntroduction,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusConflict, rec.Code)

	var body models.InsufficientCreditsError
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	suite.Equal(0, body.Balance)

	var count int64
	suite.api.db.Model(&models.IntroductionRequest{}).Count(&count)
	suite.Equal(int64(0), count)
}

func (suite *HandlerTestSuite) TestCreateIntroductionBlockedCandidate() {
	_, err := suite.api.firewall.Block(context.Background(), suite.testCandidate.ID, suite.testOrg.ID)
	suite.Require().NoError(err)

	payload := models.AddIntroduction{
		JobRoleID:   suite.testRole.ID,
		CandidateID: suite.testCandidate.ID,
		Message:     testMessage,
	}
	_, res, err := suite.ServeRequest(
		http.MethodPost, "/", "/",
		suite.sponsorActor(), suite.api.CreateIntroduction,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	// the blocked organization cannot tell a block from a missing profile
	suite.Equal(http.StatusNotFound, res.Code)
	suite.Equal(5, suite.orgBalance(suite.testOrg.ID))
}

func (suite *HandlerTestSuite) TestRespondAccept() {
	intro := suite.seedIntroduction(models.IntroductionPending, time.Now().Add(time.Hour))

	payload := models.UpdateIntroductionStatus{Status: models.IntroductionAccepted}
	_, res, err := suite.ServeRequest(
		http.MethodPatch, "/:introduction/status", "/"+intro.ID.String()+"/status",
		suite.candidateActor(), suite.api.UpdateIntroduction,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusOK, res.Code)

	var actual models.IntroductionRequest
	suite.Require().NoError(json.Unmarshal(res.Body.Bytes(), &actual))
	suite.Equal(models.IntroductionAccepted, actual.Status)
	suite.Require().NotNil(actual.RespondedAt)
	suite.True(actual.ViewedByCandidate)

	// the sending sponsor is told
	items, err := suite.api.notifier.ListForUser(context.Background(), suite.testSponsor.ID, 10)
	suite.Require().NoError(err)
	suite.Require().Len(items, 1)
	suite.Equal(models.NotificationIntroductionAccepted, items[0].Type)
}

func (suite *HandlerTestSuite) TestRespondDecline() {
	intro := suite.seedIntroduction(models.IntroductionPending, time.Now().Add(time.Hour))

	payload := models.UpdateIntroductionStatus{Status: models.IntroductionDeclined}
	_, res, err := suite.ServeRequest(
		http.MethodPatch, "/:introduction/status", "/"+intro.ID.String()+"/status",
		suite.candidateActor(), suite.api.UpdateIntroduction,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusOK, res.Code)

	var actual models.IntroductionRequest
	suite.Require().NoError(json.Unmarshal(res.Body.Bytes(), &actual))
	suite.Equal(models.IntroductionDeclined, actual.Status)
}

func (suite *HandlerTestSuite) TestRespondExpired() {
	intro := suite.seedIntroduction(models.IntroductionPending, time.Now().Add(-time.Hour))

	payload := models.UpdateIntroductionStatus{Status: models.IntroductionAccepted}
	_, res, err := suite.ServeRequest(
		http.MethodPatch, "/:introduction/status", "/"+intro.ID.String()+"/status",
		suite.candidateActor(), suite.api.UpdateIntroduction,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusConflict, res.Code)

	var body models.AlreadyExpiredError
	suite.Require().NoError(json.Unmarshal(res.Body.Bytes(), &body))
	suite.Equal(intro.ID.String(), body.ID)
}

func (suite *HandlerTestSuite) TestRespondTwice() {
	intro := suite.seedIntroduction(models.IntroductionAccepted, time.Now().Add(time.Hour))

	payload := models.UpdateIntroductionStatus{Status: models.IntroductionDeclined}
	_, res, err := suite.ServeRequest(
		http.MethodPatch, "/:introduction/status", "/"+intro.ID.String()+"/status",
		suite.candidateActor(), suite.api.UpdateIntroduction,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Equal(http.StatusConflict, res.Code)
}

func (suite *HandlerTestSuite) TestRespondNotParty() {
	intro := suite.seedIntroduction(models.IntroductionPending, time.Now().Add(time.Hour))

	other := models.Candidate{IdpID: "idp|other", FirstName: "Otto", LastName: "Other", Email: "otto@example.com"}
	suite.Require().NoError(suite.api.db.Create(&other).Error)
	actor := suite.candidateActor()
	actor.Candidate = &other

	payload := models.UpdateIntroductionStatus{Status: models.IntroductionAccepted}
	_, res, err := suite.ServeRequest(
		http.MethodPatch, "/:introduction/status", "/"+intro.ID.String()+"/status",
		actor, suite.api.UpdateIntroduction,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Equal(http.StatusNotFound, res.Code)
}

func (suite *HandlerTestSuite) TestWithdraw() {
	intro := suite.seedIntroduction(models.IntroductionPending, time.Now().Add(time.Hour))

	payload := models.UpdateIntroductionStatus{Status: models.IntroductionWithdrawn}
	_, res, err := suite.ServeRequest(
		http.MethodPatch, "/:introduction/status", "/"+intro.ID.String()+"/status",
		suite.sponsorActor(), suite.api.UpdateIntroduction,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusOK, res.Code)

	var actual models.IntroductionRequest
	suite.Require().NoError(json.Unmarshal(res.Body.Bytes(), &actual))
	suite.Equal(models.IntroductionWithdrawn, actual.Status)

	// withdrawing does not return the credit
	suite.Equal(5, suite.orgBalance(suite.testOrg.ID))
}

func (suite *HandlerTestSuite) TestWithdrawRequiresSponsor() {
	intro := suite.seedIntroduction(models.IntroductionPending, time.Now().Add(time.Hour))

	payload := models.UpdateIntroductionStatus{Status: models.IntroductionWithdrawn}
	_, res, err := suite.ServeRequest(
		http.MethodPatch, "/:introduction/status", "/"+intro.ID.String()+"/status",
		suite.candidateActor(), suite.api.UpdateIntroduction,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Equal(http.StatusForbidden, res.Code)
}

func (suite *HandlerTestSuite) TestListIntroductionsEffectiveStatus() {
	suite.seedIntroduction(models.IntroductionPending, time.Now().Add(-time.Hour))

	_, res, err := suite.ServeRequest(
		http.MethodGet, "/", "/",
		suite.candidateActor(), suite.api.ListIntroductions,
		nil,
	)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusOK, res.Code)

	var actual []models.IntroductionRequest
	suite.Require().NoError(json.Unmarshal(res.Body.Bytes(), &actual))
	suite.Require().Len(actual, 1)
	suite.Equal(models.IntroductionExpired, actual[0].Status)

	// the stored row is untouched until the sweep runs
	var stored models.IntroductionRequest
	suite.Require().NoError(suite.api.db.First(&stored, "id = ?", actual[0].ID).Error)
	suite.Equal(models.IntroductionPending, stored.Status)
}

func (suite *HandlerTestSuite) TestGetIntroductionMarksViewed() {
	intro := suite.seedIntroduction(models.IntroductionPending, time.Now().Add(time.Hour))

	_, res, err := suite.ServeRequest(
		http.MethodGet, "/:introduction", "/"+intro.ID.String(),
		suite.candidateActor(), suite.api.GetIntroduction,
		nil,
	)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusOK, res.Code)

	var stored models.IntroductionRequest
	suite.Require().NoError(suite.api.db.First(&stored, "id = ?", intro.ID).Error)
	suite.True(stored.ViewedByCandidate)
}

func (suite *HandlerTestSuite) TestSweepExpiredIntroductions() {
	stale := suite.seedIntroduction(models.IntroductionPending, time.Now().Add(-time.Hour))
	fresh := suite.seedIntroduction(models.IntroductionPending, time.Now().Add(time.Hour))

	suite.Require().NoError(suite.api.SweepExpiredIntroductions(context.Background()))

	var staleStored models.IntroductionRequest
	suite.Require().NoError(suite.api.db.First(&staleStored, "id = ?", stale.ID).Error)
	suite.Equal(models.IntroductionExpired, staleStored.Status)

	var freshStored models.IntroductionRequest
	suite.Require().NoError(suite.api.db.First(&freshStored, "id = ?", fresh.ID).Error)
	suite.Equal(models.IntroductionPending, freshStored.Status)

	// the default policy keeps the credit
	suite.Equal(5, suite.orgBalance(suite.testOrg.ID))
}

func (suite *HandlerTestSuite) TestSweepRefundsWhenEnabled() {
	suite.T().Setenv("TBAPI_FFLAG_CREDIT_REFUND_ON_EXPIRY", "true")
	suite.seedIntroduction(models.IntroductionPending, time.Now().Add(-time.Hour))

	suite.Require().NoError(suite.api.SweepExpiredIntroductions(context.Background()))
	suite.Equal(6, suite.orgBalance(suite.testOrg.ID))

	// the sweep is idempotent, re-running it refunds nothing
	suite.Require().NoError(suite.api.SweepExpiredIntroductions(context.Background()))
	suite.Equal(6, suite.orgBalance(suite.testOrg.ID))
}
