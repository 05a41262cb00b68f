package party

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/warp-contracts/shadowlink/src/utils/logger"
	"github.com/warp-contracts/shadowlink/src/utils/model"
	"github.com/warp-contracts/shadowlink/src/utils/store"
	"github.com/warp-contracts/shadowlink/src/utils/workflow"
)

// Every optimistic read-modify-write gives up after this many collisions
const maxAttempts = 5

// Profiles and address books of parties
type Directory struct {
	log     *logrus.Entry
	parties store.Collection[model.Party]
}

type UpdateProfileRequest struct {
	Name           *string `json:"name" validate:"omitempty,max=128"`
	Description    *string `json:"description" validate:"omitempty,max=2048"`
	Industry       *string `json:"industry" validate:"omitempty,max=128"`
	EmployeesCount *int    `json:"employeesCount" validate:"omitempty,min=0"`
}

type AddContactRequest struct {
	Name    string `json:"name" validate:"required,max=128"`
	Address string `json:"address" validate:"required"`
}

type RemoveContactRequest struct {
	Address string `json:"address" validate:"required"`
}

func NewDirectory(parties store.Collection[model.Party]) (self *Directory) {
	self = new(Directory)
	self.log = logger.NewSublogger("party")
	self.parties = parties
	return
}

// Party record without creating it. Fails with ErrNotFound.
func (self *Directory) Find(ctx context.Context, address string) (*model.Party, error) {
	party, err := self.parties.FindOne(ctx, address)
	if errors.Is(err, store.ErrNotFound) {
		return nil, workflow.Wrap(workflow.ErrNotFound, "party %s", address)
	}
	return party, err
}

// Profile of the party, created on first access
func (self *Directory) GetProfile(ctx context.Context, address string) (party *model.Party, err error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, workflow.Wrap(workflow.ErrValidation, "empty address")
	}

	party, err = self.parties.FindOne(ctx, address)
	if !errors.Is(err, store.ErrNotFound) {
		return
	}

	party = &model.Party{
		Address:  address,
		Contacts: model.Contacts{},
	}
	err = self.parties.Create(ctx, party)
	if errors.Is(err, store.ErrDuplicate) {
		// Created concurrently
		return self.parties.FindOne(ctx, address)
	}
	if err != nil {
		return nil, err
	}

	self.log.WithField("address", address).Debug("Party created")
	return
}

func (self *Directory) UpdateProfile(ctx context.Context, address string, req *UpdateProfileRequest) (*model.Party, error) {
	err := workflow.Validate(req)
	if err != nil {
		return nil, err
	}

	_, err = self.GetProfile(ctx, address)
	if err != nil {
		return nil, err
	}

	changes := store.Changes{}
	if req.Name != nil {
		changes["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		changes["description"] = *req.Description
	}
	if req.Industry != nil {
		changes["industry"] = *req.Industry
	}
	if req.EmployeesCount != nil {
		changes["employees_count"] = *req.EmployeesCount
	}
	if len(changes) > 0 {
		err = self.parties.UpdateOne(ctx, address, nil, changes)
		if err != nil {
			return nil, err
		}
	}

	return self.parties.FindOne(ctx, address)
}

// Replaces the party's contact list. Retries when someone else changed it meanwhile.
func (self *Directory) modifyContacts(ctx context.Context, owner string, modify func(model.Contacts) (model.Contacts, error)) (contacts model.Contacts, err error) {
	for i := 0; i < maxAttempts; i++ {
		var party *model.Party
		party, err = self.GetProfile(ctx, owner)
		if err != nil {
			return
		}

		contacts, err = modify(party.Contacts)
		if err != nil {
			return
		}

		err = self.parties.UpdateOne(ctx, owner,
			store.Filter{"updated_at": party.UpdatedAt},
			store.Changes{"contacts": contacts},
		)
		if !errors.Is(err, store.ErrConflict) {
			return
		}
		self.log.WithField("owner", owner).Debug("Contacts changed concurrently, retrying")
	}
	return nil, err
}

// Adds an address to the book. Existing entry for the same address gets renamed.
func (self *Directory) AddContact(ctx context.Context, owner string, req *AddContactRequest) (model.Contacts, error) {
	err := workflow.Validate(req)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	address := strings.TrimSpace(req.Address)
	if name == "" || address == "" {
		return nil, workflow.Wrap(workflow.ErrValidation, "contact needs a name and an address")
	}
	if address == owner {
		return nil, workflow.Wrap(workflow.ErrValidation, "can't add own address")
	}

	return self.modifyContacts(ctx, owner, func(current model.Contacts) (model.Contacts, error) {
		out := make(model.Contacts, 0, len(current)+1)
		found := false
		for _, c := range current {
			if c.Address == address {
				c.Name = name
				found = true
			}
			out = append(out, c)
		}
		if !found {
			out = append(out, model.Contact{Name: name, Address: address})
		}
		return out, nil
	})
}

func (self *Directory) RemoveContact(ctx context.Context, owner string, req *RemoveContactRequest) (model.Contacts, error) {
	err := workflow.Validate(req)
	if err != nil {
		return nil, err
	}

	return self.modifyContacts(ctx, owner, func(current model.Contacts) (model.Contacts, error) {
		out := make(model.Contacts, 0, len(current))
		for _, c := range current {
			if c.Address != req.Address {
				out = append(out, c)
			}
		}
		if len(out) == len(current) {
			return nil, workflow.Wrap(workflow.ErrNotFound, "contact %s", req.Address)
		}
		return out, nil
	})
}

func (self *Directory) ListContacts(ctx context.Context, owner string) (model.Contacts, error) {
	party, err := self.GetProfile(ctx, owner)
	if err != nil {
		return nil, err
	}
	if party.Contacts == nil {
		return model.Contacts{}, nil
	}
	return party.Contacts, nil
}

// Resolves how the owner sees an address: own contact name, then the party's profile name, then the address itself
func (self *Directory) DisplayName(ctx context.Context, owner, address string) string {
	if owner != "" {
		party, err := self.parties.FindOne(ctx, owner)
		if err == nil {
			for _, c := range party.Contacts {
				if c.Address == address {
					return c.Name
				}
			}
		}
	}

	party, err := self.parties.FindOne(ctx, address)
	if err != nil {
		return address
	}
	return party.DisplayName()
}

func (self *Directory) IncrementTendersCreated(ctx context.Context, address string) error {
	return self.increment(ctx, address, "tenders_created")
}

func (self *Directory) IncrementTendersWon(ctx context.Context, address string) error {
	return self.increment(ctx, address, "tenders_won")
}

func (self *Directory) increment(ctx context.Context, address, column string) (err error) {
	_, err = self.GetProfile(ctx, address)
	if err != nil {
		return
	}
	return self.parties.UpdateOne(ctx, address, nil, store.Changes{column: store.Inc(1)})
}

// Marks the party as registered in the pool. Returns true if it wasn't before.
func (self *Directory) MarkRegistered(ctx context.Context, address string) (changed bool, err error) {
	party, err := self.GetProfile(ctx, address)
	if err != nil {
		return
	}
	if party.Registered {
		return false, nil
	}

	err = self.parties.UpdateOne(ctx, address, store.Filter{"registered": false}, store.Changes{"registered": true})
	if errors.Is(err, store.ErrConflict) {
		// Registered concurrently
		return false, nil
	}
	return err == nil, err
}

// Reads the flag from the store every time
func (self *Directory) IsRegistered(ctx context.Context, address string) (bool, error) {
	party, err := self.parties.FindOne(ctx, address)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return party.Registered, nil
}
