package subscriptions

import (
	"context"
	"errors"
	"testing"

	"github.com/BearBump/busnoti/internal/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	subsmocks "github.com/BearBump/busnoti/internal/services/subscriptions/mocks"
)

type ServiceSuite struct {
	suite.Suite

	repo *subsmocks.MockRepository
	svc  *Service
}

func (s *ServiceSuite) SetupTest() {
	s.repo = &subsmocks.MockRepository{}
	s.svc = New(s.repo)
}

func validSub(id string) *models.Subscription {
	return &models.Subscription{
		ID: id, UserID: "u1", Region: models.RegionGyeonggi,
		StationID: "gangseo", RouteID: "1", LeadTimeMinutes: 10,
		Channels: []string{models.ChannelConsole}, IsActive: true,
	}
}

func (s *ServiceSuite) TestFindActive_DropsInvalid() {
	bad := validSub("bad")
	bad.LeadTimeMinutes = 0
	noChannels := validSub("nochan")
	noChannels.Channels = nil
	halfWindow := validSub("half")
	halfWindow.ActiveTimeStart = ptr("08:00")
	inactive := validSub("off")
	inactive.IsActive = false

	s.repo.On("FindActiveSubscriptions", mock.Anything).
		Return([]*models.Subscription{validSub("a"), bad, noChannels, halfWindow, inactive, nil, validSub("b")}, nil).
		Once()

	out, err := s.svc.FindActive(context.Background())
	s.Require().NoError(err)
	s.Require().Len(out, 2)
	s.Require().Equal("a", out[0].ID)
	s.Require().Equal("b", out[1].ID)
}

func (s *ServiceSuite) TestFindActive_KeepsUnknownRegionAndChannel() {
	otherRegion := validSub("incheon")
	otherRegion.Region = models.Region("INCHEON")
	extraChannel := validSub("sms")
	extraChannel.Channels = []string{models.ChannelConsole, "sms"}
	emptyTag := validSub("empty-tag")
	emptyTag.Channels = []string{""}

	s.repo.On("FindActiveSubscriptions", mock.Anything).
		Return([]*models.Subscription{otherRegion, extraChannel, emptyTag}, nil).
		Once()

	out, err := s.svc.FindActive(context.Background())
	s.Require().NoError(err)
	s.Require().Len(out, 2)
	s.Require().Equal("incheon", out[0].ID)
	s.Require().Equal("sms", out[1].ID)
}

func (s *ServiceSuite) TestFindActive_RepoError() {
	s.repo.On("FindActiveSubscriptions", mock.Anything).Return(nil, errors.New("db down")).Once()

	_, err := s.svc.FindActive(context.Background())
	s.Require().Error(err)
	s.Require().Contains(err.Error(), "db down")
}

func (s *ServiceSuite) TestFindByID() {
	_, err := s.svc.FindByID(context.Background(), "")
	s.Require().Error(err)
	s.repo.AssertNotCalled(s.T(), "FindSubscriptionByID", mock.Anything, mock.Anything)

	s.repo.On("FindSubscriptionByID", mock.Anything, "missing").Return(nil, models.ErrNotFound).Once()
	_, err = s.svc.FindByID(context.Background(), "missing")
	s.Require().ErrorIs(err, ErrNotFound)

	s.repo.On("FindSubscriptionByID", mock.Anything, "a").Return(validSub("a"), nil).Once()
	sub, err := s.svc.FindByID(context.Background(), "a")
	s.Require().NoError(err)
	s.Require().Equal("a", sub.ID)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
