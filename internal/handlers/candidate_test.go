package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/talentbridge-io/talentbridge/internal/models"
	"github.com/talentbridge-io/talentbridge/internal/visibility"
)

func (suite *HandlerTestSuite) getCandidateView() (visibility.CandidateView, int) {
	_, res, err := suite.ServeRequest(
		http.MethodGet, "/:candidate", "/"+suite.testCandidate.ID.String(),
		suite.sponsorActor(), suite.api.GetCandidate,
		nil,
	)
	suite.Require().NoError(err)
	var view visibility.CandidateView
	if res.Code == http.StatusOK {
		suite.Require().NoError(json.Unmarshal(res.Body.Bytes(), &view))
	}
	return view, res.Code
}

func (suite *HandlerTestSuite) TestGetCandidateOpenProfile() {
	view, code := suite.getCandidateView()
	suite.Require().Equal(http.StatusOK, code)
	suite.Equal("Ada Lovelace", view.DisplayName)
	suite.Equal("Analytical Engines Ltd", view.Employer)
	suite.Equal(visibility.RelationshipNone, view.Relationship)
	// contact details wait for an accepted introduction
	suite.Empty(view.Email)
	suite.Empty(view.ProfileURLs)
}

func (suite *HandlerTestSuite) TestGetCandidateConfidentialSearch() {
	res := suite.api.db.Model(&models.Candidate{}).
		Where("id = ?", suite.testCandidate.ID).
		Update("confidential_search", true)
	suite.Require().NoError(res.Error)

	view, code := suite.getCandidateView()
	suite.Require().Equal(http.StatusOK, code)
	suite.Equal("Ada L.", view.DisplayName)
	suite.Equal(visibility.Confidential, view.Employer)
	suite.Empty(view.Email)
}

func (suite *HandlerTestSuite) TestGetCandidateAfterAcceptedIntroduction() {
	res := suite.api.db.Model(&models.Candidate{}).
		Where("id = ?", suite.testCandidate.ID).
		Update("confidential_search", true)
	suite.Require().NoError(res.Error)
	suite.seedIntroduction(models.IntroductionAccepted, time.Now().Add(time.Hour))

	view, code := suite.getCandidateView()
	suite.Require().Equal(http.StatusOK, code)
	suite.Equal(visibility.RelationshipAccepted, view.Relationship)
	suite.Equal("Analytical Engines Ltd", view.Employer)
	suite.Equal("ada@example.com", view.Email)
	// the name stays truncated while confidential search is on
	suite.Equal("Ada L.", view.DisplayName)
}

func (suite *HandlerTestSuite) TestGetCandidateExpiredPendingCarriesNoWeight() {
	suite.seedIntroduction(models.IntroductionPending, time.Now().Add(-time.Hour))

	view, code := suite.getCandidateView()
	suite.Require().Equal(http.StatusOK, code)
	suite.Equal(visibility.RelationshipNone, view.Relationship)
}

func (suite *HandlerTestSuite) TestGetCandidateFirewallOverridesAcceptance() {
	suite.seedIntroduction(models.IntroductionAccepted, time.Now().Add(time.Hour))
	_, err := suite.api.firewall.Block(context.Background(), suite.testCandidate.ID, suite.testOrg.ID)
	suite.Require().NoError(err)

	view, code := suite.getCandidateView()
	suite.Require().Equal(http.StatusOK, code)
	suite.Equal("A. L.", view.DisplayName)
	suite.Empty(view.Email)
	suite.Empty(view.Employer)
	suite.Equal(visibility.RelationshipNone, view.Relationship)
}

func (suite *HandlerTestSuite) TestGetCandidateUnblockRestoresVisibility() {
	_, err := suite.api.firewall.Block(context.Background(), suite.testCandidate.ID, suite.testOrg.ID)
	suite.Require().NoError(err)
	_, err = suite.api.firewall.Unblock(context.Background(), suite.testCandidate.ID, suite.testOrg.ID)
	suite.Require().NoError(err)

	view, code := suite.getCandidateView()
	suite.Require().Equal(http.StatusOK, code)
	suite.Equal("Ada Lovelace", view.DisplayName)
	suite.Equal("Analytical Engines Ltd", view.Employer)
}

func (suite *HandlerTestSuite) TestGetCandidateHiddenFromOrganization() {
	res := suite.api.db.Model(&models.Candidate{}).
		Where("id = ?", suite.testCandidate.ID).
		Update("hide_from_org_ids", `{`+suite.testOrg.ID.String()+`}`)
	suite.Require().NoError(res.Error)

	view, code := suite.getCandidateView()
	suite.Require().Equal(http.StatusOK, code)
	suite.Equal("A. L.", view.DisplayName)
	suite.Empty(view.Employer)
}

func (suite *HandlerTestSuite) TestGetCandidateSelf() {
	_, res, err := suite.ServeRequest(
		http.MethodGet, "/:candidate", "/"+suite.testCandidate.ID.String(),
		suite.candidateActor(), suite.api.GetCandidate,
		nil,
	)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusOK, res.Code)

	var actual models.Candidate
	suite.Require().NoError(json.Unmarshal(res.Body.Bytes(), &actual))
	suite.Equal("ada@example.com", actual.Email)
}

func (suite *HandlerTestSuite) TestUpdateCurrentCandidate() {
	confidential := true
	headline := "Principal Engineer"
	skills := []string{"go", "distributed systems"}
	payload := models.UpdateCandidate{
		ConfidentialSearch: &confidential,
		Headline:           &headline,
		Skills:             &skills,
	}
	_, res, err := suite.ServeRequest(
		http.MethodPatch, "/me", "/me",
		suite.candidateActor(), suite.api.UpdateCurrentCandidate,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusOK, res.Code)

	var actual models.Candidate
	suite.Require().NoError(json.Unmarshal(res.Body.Bytes(), &actual))
	suite.True(actual.ConfidentialSearch)
	suite.Equal("Principal Engineer", actual.Headline)
	suite.Equal([]string{"go", "distributed systems"}, []string(actual.Skills))
	// untouched fields survive the patch
	suite.Equal("Staff Engineer", actual.Title)
}

func (suite *HandlerTestSuite) TestUpdateCurrentCandidateBadHideList() {
	hide := []string{"not-a-uuid"}
	payload := models.UpdateCandidate{HideFromOrgIDs: &hide}
	_, res, err := suite.ServeRequest(
		http.MethodPatch, "/me", "/me",
		suite.candidateActor(), suite.api.UpdateCurrentCandidate,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Equal(http.StatusBadRequest, res.Code)
}
