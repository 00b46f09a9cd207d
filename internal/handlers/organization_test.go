package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/talentbridge-io/talentbridge/internal/models"
)

func (suite *HandlerTestSuite) TestCreateOrganization() {
	payload := models.AddOrganization{
		Name:           "new-venture",
		Description:    "A brand new sponsor",
		InitialCredits: 10,
	}
	_, res, err := suite.ServeRequest(
		http.MethodPost, "/", "/",
		suite.adminActor(), suite.api.CreateOrganization,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusCreated, res.Code)

	var actual models.Organization
	suite.Require().NoError(json.Unmarshal(res.Body.Bytes(), &actual))
	suite.Equal("new-venture", actual.Name)
	suite.Equal(10, actual.CreditBalance)
}

func (suite *HandlerTestSuite) TestCreateOrganizationDuplicate() {
	payload := models.AddOrganization{Name: suite.testOrg.Name}
	_, res, err := suite.ServeRequest(
		http.MethodPost, "/", "/",
		suite.adminActor(), suite.api.CreateOrganization,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Equal(http.StatusConflict, res.Code)
}

func (suite *HandlerTestSuite) TestCreateOrganizationRequiresAdmin() {
	payload := models.AddOrganization{Name: "sneaky-org"}
	_, res, err := suite.ServeRequest(
		http.MethodPost, "/", "/",
		suite.sponsorActor(), suite.api.CreateOrganization,
		suite.jsonBody(payload),
	)
	suite.Require().NoError(err)
	suite.Equal(http.StatusForbidden, res.Code)
}

func (suite *HandlerTestSuite) TestGetOrganizationCredits() {
	_, res, err := suite.ServeRequest(
		http.MethodGet, "/me/credits", "/me/credits",
		suite.sponsorActor(), suite.api.GetOrganizationCredits,
		nil,
	)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusOK, res.Code)

	var actual models.OrganizationCredits
	suite.Require().NoError(json.Unmarshal(res.Body.Bytes(), &actual))
	suite.Equal(suite.testOrg.ID.String(), actual.OrganizationID)
	suite.Equal(5, actual.CreditBalance)
}
