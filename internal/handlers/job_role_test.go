package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/talentbridge-io/talentbridge/internal/models"
)

func (suite *HandlerTestSuite) TestCreateJobRole() {
	payload := models.AddJobRole{
		Title:          "Platform Engineer",
		Description:    "Own the build and deploy pipeline.",
		IsConfidential: true,
	}
	_, res, err := suite.ServeRequest(
		http.MethodPost, "/", "/",
		suite.sponsorActor(), suite.api.CreateJobRole,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusCreated, res.Code)

	var actual models.JobRole
	suite.Require().NoError(json.Unmarshal(res.Body.Bytes(), &actual))
	suite.Equal(models.JobRoleDraft, actual.Status)
	suite.True(actual.IsConfidential)
	suite.Nil(actual.PublishedAt)
}

func (suite *HandlerTestSuite) TestCreateJobRoleRequiresPermission() {
	sponsor := suite.testSponsor
	sponsor.CanCreateRoles = false
	actor := suite.sponsorActor()
	actor.Sponsor = &sponsor

	payload := models.AddJobRole{Title: "Shadow Role"}
	_, res, err := suite.ServeRequest(
		http.MethodPost, "/", "/",
		actor, suite.api.CreateJobRole,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Equal(http.StatusForbidden, res.Code)
}

func (suite *HandlerTestSuite) transitionRole(roleID string, status models.JobRoleStatus) (*models.JobRole, int) {
	payload := models.UpdateJobRoleStatus{Status: status}
	_, res, err := suite.ServeRequest(
		http.MethodPatch, "/:job-role/status", "/"+roleID+"/status",
		suite.sponsorActor(), suite.api.UpdateJobRole,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	if res.Code != http.StatusOK {
		return nil, res.Code
	}
	var actual models.JobRole
	suite.Require().NoError(json.Unmarshal(res.Body.Bytes(), &actual))
	return &actual, res.Code
}

func (suite *HandlerTestSuite) TestJobRoleLifecycle() {
	draft := models.JobRole{
		OrganizationID: suite.testOrg.ID,
		CreatedBy:      suite.testSponsor.ID,
		Title:          "Lifecycle Role",
		Status:         models.JobRoleDraft,
	}
	suite.Require().NoError(suite.api.db.Create(&draft).Error)

	role, code := suite.transitionRole(draft.ID.String(), models.JobRoleActive)
	suite.Require().Equal(http.StatusOK, code)
	suite.Equal(models.JobRoleActive, role.Status)
	suite.Require().NotNil(role.PublishedAt)
	published := *role.PublishedAt

	role, code = suite.transitionRole(draft.ID.String(), models.JobRolePaused)
	suite.Require().Equal(http.StatusOK, code)
	suite.Equal(models.JobRolePaused, role.Status)

	// republishing keeps the original publication time
	role, code = suite.transitionRole(draft.ID.String(), models.JobRoleActive)
	suite.Require().Equal(http.StatusOK, code)
	suite.Require().NotNil(role.PublishedAt)
	suite.WithinDuration(published, *role.PublishedAt, time.Second)

	role, code = suite.transitionRole(draft.ID.String(), models.JobRoleFilled)
	suite.Require().Equal(http.StatusOK, code)
	suite.Equal(models.JobRoleFilled, role.Status)
	suite.Require().NotNil(role.FilledAt)
}

func (suite *HandlerTestSuite) TestJobRoleInvalidTransition() {
	draft := models.JobRole{
		OrganizationID: suite.testOrg.ID,
		CreatedBy:      suite.testSponsor.ID,
		Title:          "Draft Role",
		Status:         models.JobRoleDraft,
	}
	suite.Require().NoError(suite.api.db.Create(&draft).Error)

	payload := models.UpdateJobRoleStatus{Status: models.JobRoleFilled}
	_, res, err := suite.ServeRequest(
		http.MethodPatch, "/:job-role/status", "/"+draft.ID.String()+"/status",
		suite.sponsorActor(), suite.api.UpdateJobRole,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusConflict, res.Code)

	var body models.InvalidTransitionError
	suite.Require().NoError(json.Unmarshal(res.Body.Bytes(), &body))
	suite.Equal("draft", body.From)
	suite.Equal("filled", body.To)
}

func (suite *HandlerTestSuite) TestJobRoleTerminalIsFinal() {
	closed := models.JobRole{
		OrganizationID: suite.testOrg.ID,
		CreatedBy:      suite.testSponsor.ID,
		Title:          "Closed Role",
		Status:         models.JobRoleClosed,
	}
	suite.Require().NoError(suite.api.db.Create(&closed).Error)

	for _, target := range []models.JobRoleStatus{
		models.JobRoleDraft,
		models.JobRoleActive,
		models.JobRolePaused,
		models.JobRoleFilled,
	} {
		_, code := suite.transitionRole(closed.ID.String(), target)
		suite.Equal(http.StatusConflict, code)
	}
}

func (suite *HandlerTestSuite) TestJobRoleUnknownStatus() {
	payload := map[string]string{"status": "abandoned"}
	_, res, err := suite.ServeRequest(
		http.MethodPatch, "/:job-role/status", "/"+suite.testRole.ID.String()+"/status",
		suite.sponsorActor(), suite.api.UpdateJobRole,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Equal(http.StatusBadRequest, res.Code)
}

func (suite *HandlerTestSuite) TestJobRoleScopedToOrganization() {
	other := models.Organization{Name: "rival-corp", CreditBalance: 10}
	suite.Require().NoError(suite.api.db.Create(&other).Error)
	foreign := models.JobRole{
		OrganizationID: other.ID,
		Title:          "Foreign Role",
		Status:         models.JobRoleActive,
	}
	suite.Require().NoError(suite.api.db.Create(&foreign).Error)

	_, res, err := suite.ServeRequest(
		http.MethodGet, "/:job-role", "/"+foreign.ID.String(),
		suite.sponsorActor(), suite.api.GetJobRole,
		nil,
	)
	suite.Require().NoError(err)
	suite.Equal(http.StatusNotFound, res.Code)

	payload := models.UpdateJobRoleStatus{Status: models.JobRolePaused}
	_, res, err = suite.ServeRequest(
		http.MethodPatch, "/:job-role/status", "/"+foreign.ID.String()+"/status",
		suite.sponsorActor(), suite.api.UpdateJobRole,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Equal(http.StatusNotFound, res.Code)
}

func (suite *HandlerTestSuite) TestJobRoleClosureNotifiesPendingIntroductions() {
	intro := suite.seedIntroduction(models.IntroductionPending, time.Now().Add(time.Hour))

	_, code := suite.transitionRole(suite.testRole.ID.String(), models.JobRoleFilled)
	suite.Require().Equal(http.StatusOK, code)

	items, err := suite.api.notifier.ListForUser(context.Background(), suite.testCandidate.ID, 10)
	suite.Require().NoError(err)
	suite.Require().Len(items, 1)
	suite.Equal(models.NotificationJobRoleNoLongerOpen, items[0].Type)
	suite.Equal(intro.ID, items[0].RelatedEntity)

	// the introduction itself stays pending
	var stored models.IntroductionRequest
	suite.Require().NoError(suite.api.db.First(&stored, "id = ?", intro.ID).Error)
	suite.Equal(models.IntroductionPending, stored.Status)

	// replaying the cascade delivers nothing twice
	var role models.JobRole
	suite.Require().NoError(suite.api.db.First(&role, "id = ?", suite.testRole.ID).Error)
	suite.Require().NoError(suite.api.notifyRoleClosure(context.Background(), &role))

	items, err = suite.api.notifier.ListForUser(context.Background(), suite.testCandidate.ID, 10)
	suite.Require().NoError(err)
	suite.Len(items, 1)
}
