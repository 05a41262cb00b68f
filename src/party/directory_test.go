package party

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/warp-contracts/shadowlink/src/utils/model"
	"github.com/warp-contracts/shadowlink/src/utils/store"
	"github.com/warp-contracts/shadowlink/src/utils/workflow"
)

func TestDirectoryTestSuite(t *testing.T) {
	suite.Run(t, new(DirectoryTestSuite))
}

type DirectoryTestSuite struct {
	suite.Suite
	ctx       context.Context
	directory *Directory
}

func (s *DirectoryTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.directory = NewDirectory(store.NewMemory[model.Party]().WithKey("address"))
}

func ptr[T any](v T) *T {
	return &v
}

func (s *DirectoryTestSuite) TestLazyCreation() {
	_, err := s.directory.Find(s.ctx, "alice")
	require.ErrorIs(s.T(), err, workflow.ErrNotFound)

	party, err := s.directory.GetProfile(s.ctx, "alice")
	require.Nil(s.T(), err)
	require.Equal(s.T(), "alice", party.Address)
	require.False(s.T(), party.Registered)
	require.Equal(s.T(), "alice", party.DisplayName())

	again, err := s.directory.GetProfile(s.ctx, "alice")
	require.Nil(s.T(), err)
	require.Equal(s.T(), party.CreatedAt, again.CreatedAt)

	_, err = s.directory.GetProfile(s.ctx, "  ")
	require.ErrorIs(s.T(), err, workflow.ErrValidation)
}

func (s *DirectoryTestSuite) TestConcurrentCreation() {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.directory.GetProfile(s.ctx, "alice")
			require.Nil(s.T(), err)
		}()
	}
	wg.Wait()
}

func (s *DirectoryTestSuite) TestUpdateProfile() {
	party, err := s.directory.UpdateProfile(s.ctx, "alice", &UpdateProfileRequest{
		Name:           ptr(" Acme "),
		Industry:       ptr("construction"),
		EmployeesCount: ptr(12),
	})
	require.Nil(s.T(), err)
	require.Equal(s.T(), "Acme", party.Name)
	require.Equal(s.T(), "construction", party.Industry)
	require.Equal(s.T(), 12, party.EmployeesCount)

	// Untouched fields stay
	party, err = s.directory.UpdateProfile(s.ctx, "alice", &UpdateProfileRequest{Description: ptr("Builders")})
	require.Nil(s.T(), err)
	require.Equal(s.T(), "Acme", party.Name)
	require.Equal(s.T(), "Builders", party.Description)

	_, err = s.directory.UpdateProfile(s.ctx, "alice", &UpdateProfileRequest{EmployeesCount: ptr(-1)})
	require.ErrorIs(s.T(), err, workflow.ErrValidation)
}

func (s *DirectoryTestSuite) TestContacts() {
	contacts, err := s.directory.ListContacts(s.ctx, "alice")
	require.Nil(s.T(), err)
	require.Empty(s.T(), contacts)

	_, err = s.directory.AddContact(s.ctx, "alice", &AddContactRequest{Name: "Bob", Address: "bob"})
	require.Nil(s.T(), err)
	_, err = s.directory.AddContact(s.ctx, "alice", &AddContactRequest{Name: "Carol", Address: "carol"})
	require.Nil(s.T(), err)

	// Same address renames the entry in place
	contacts, err = s.directory.AddContact(s.ctx, "alice", &AddContactRequest{Name: "Robert", Address: "bob"})
	require.Nil(s.T(), err)
	require.Equal(s.T(), model.Contacts{{Name: "Robert", Address: "bob"}, {Name: "Carol", Address: "carol"}}, contacts)

	contacts, err = s.directory.RemoveContact(s.ctx, "alice", &RemoveContactRequest{Address: "bob"})
	require.Nil(s.T(), err)
	require.Equal(s.T(), model.Contacts{{Name: "Carol", Address: "carol"}}, contacts)

	_, err = s.directory.RemoveContact(s.ctx, "alice", &RemoveContactRequest{Address: "bob"})
	require.ErrorIs(s.T(), err, workflow.ErrNotFound)

	contacts, err = s.directory.ListContacts(s.ctx, "alice")
	require.Nil(s.T(), err)
	require.Len(s.T(), contacts, 1)
}

func (s *DirectoryTestSuite) TestInvalidContact() {
	_, err := s.directory.AddContact(s.ctx, "alice", &AddContactRequest{Name: "", Address: "bob"})
	require.ErrorIs(s.T(), err, workflow.ErrValidation)

	_, err = s.directory.AddContact(s.ctx, "alice", &AddContactRequest{Name: "  ", Address: "bob"})
	require.ErrorIs(s.T(), err, workflow.ErrValidation)

	_, err = s.directory.AddContact(s.ctx, "alice", &AddContactRequest{Name: "Me", Address: "alice"})
	require.ErrorIs(s.T(), err, workflow.ErrValidation)
}

func (s *DirectoryTestSuite) TestConcurrentContacts() {
	var wg sync.WaitGroup
	names := []string{"a", "b", "c", "d"}
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := s.directory.AddContact(s.ctx, "alice", &AddContactRequest{Name: name, Address: name})
			require.Nil(s.T(), err)
		}(name)
	}
	wg.Wait()

	contacts, err := s.directory.ListContacts(s.ctx, "alice")
	require.Nil(s.T(), err)
	require.Len(s.T(), contacts, len(names))
}

func (s *DirectoryTestSuite) TestDisplayName() {
	require.Equal(s.T(), "bob", s.directory.DisplayName(s.ctx, "alice", "bob"))

	_, err := s.directory.UpdateProfile(s.ctx, "bob", &UpdateProfileRequest{Name: ptr("Bob Ltd")})
	require.Nil(s.T(), err)
	require.Equal(s.T(), "Bob Ltd", s.directory.DisplayName(s.ctx, "alice", "bob"))

	_, err = s.directory.AddContact(s.ctx, "alice", &AddContactRequest{Name: "Plumber", Address: "bob"})
	require.Nil(s.T(), err)
	require.Equal(s.T(), "Plumber", s.directory.DisplayName(s.ctx, "alice", "bob"))
	require.Equal(s.T(), "Bob Ltd", s.directory.DisplayName(s.ctx, "carol", "bob"))
}

func (s *DirectoryTestSuite) TestCounters() {
	require.Nil(s.T(), s.directory.IncrementTendersCreated(s.ctx, "alice"))
	require.Nil(s.T(), s.directory.IncrementTendersCreated(s.ctx, "alice"))
	require.Nil(s.T(), s.directory.IncrementTendersWon(s.ctx, "bob"))

	alice, err := s.directory.Find(s.ctx, "alice")
	require.Nil(s.T(), err)
	require.Equal(s.T(), 2, alice.TendersCreated)

	bob, err := s.directory.Find(s.ctx, "bob")
	require.Nil(s.T(), err)
	require.Equal(s.T(), 1, bob.TendersWon)
}

func (s *DirectoryTestSuite) TestRegistration() {
	registered, err := s.directory.IsRegistered(s.ctx, "alice")
	require.Nil(s.T(), err)
	require.False(s.T(), registered)

	changed, err := s.directory.MarkRegistered(s.ctx, "alice")
	require.Nil(s.T(), err)
	require.True(s.T(), changed)

	changed, err = s.directory.MarkRegistered(s.ctx, "alice")
	require.Nil(s.T(), err)
	require.False(s.T(), changed)

	registered, err = s.directory.IsRegistered(s.ctx, "alice")
	require.Nil(s.T(), err)
	require.True(s.T(), registered)
}
