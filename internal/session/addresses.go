package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"marketclient/domain/entity"
)

// selectAddress derives the selected address from a collection: the
// default-flagged entry, else the first in server-returned order, else none.
// Pure and idempotent.
func selectAddress(addresses []entity.Address) *entity.Address {
	for i := range addresses {
		if addresses[i].IsDefault {
			return &addresses[i]
		}
	}
	if len(addresses) > 0 {
		return &addresses[0]
	}
	return nil
}

func selectedIDOf(addresses []entity.Address) uuid.UUID {
	if a := selectAddress(addresses); a != nil {
		return a.ID
	}
	return uuid.Nil
}

// AddAddress creates an address and folds the server's returned entity into
// the local collection. The submitted payload is never trusted locally.
func (m *Manager) AddAddress(ctx context.Context, input entity.AddressInput) (entity.Address, error) {
	done, err := m.begin(OpAddress)
	if err != nil {
		return entity.Address{}, err
	}
	defer done()

	var created entity.Address
	if err := m.client.Post(ctx, "/addresses", input, &created); err != nil {
		return entity.Address{}, err
	}

	m.mu.Lock()
	if created.IsDefault {
		// The server keeps a single default; mirror that locally.
		for i := range m.addresses {
			m.addresses[i].IsDefault = false
		}
	}
	m.addresses = append(m.addresses, created)
	if created.IsDefault || m.selectedID == uuid.Nil {
		m.selectedID = selectedIDOf(m.addresses)
	}
	m.mu.Unlock()
	return created, nil
}

// UpdateAddress updates an address and replaces the local entry with the
// server's returned entity.
func (m *Manager) UpdateAddress(ctx context.Context, id uuid.UUID, input entity.AddressInput) (entity.Address, error) {
	done, err := m.begin(OpAddress)
	if err != nil {
		return entity.Address{}, err
	}
	defer done()

	var updated entity.Address
	if err := m.client.Put(ctx, fmt.Sprintf("/addresses/%s", id), input, &updated); err != nil {
		return entity.Address{}, err
	}

	m.mu.Lock()
	if updated.IsDefault {
		for i := range m.addresses {
			m.addresses[i].IsDefault = false
		}
	}
	for i := range m.addresses {
		if m.addresses[i].ID == updated.ID {
			m.addresses[i] = updated
			break
		}
	}
	if updated.IsDefault {
		m.selectedID = updated.ID
	}
	m.mu.Unlock()
	return updated, nil
}

// DeleteAddress removes an address. Deleting the currently selected address
// re-selects the first remaining entry, or none when the collection empties.
func (m *Manager) DeleteAddress(ctx context.Context, id uuid.UUID) error {
	done, err := m.begin(OpAddress)
	if err != nil {
		return err
	}
	defer done()

	if err := m.client.Delete(ctx, fmt.Sprintf("/addresses/%s", id)); err != nil {
		return err
	}

	m.mu.Lock()
	kept := m.addresses[:0]
	for _, a := range m.addresses {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	m.addresses = kept
	if m.selectedID == id {
		if len(m.addresses) > 0 {
			m.selectedID = m.addresses[0].ID
		} else {
			m.selectedID = uuid.Nil
		}
	}
	m.mu.Unlock()
	return nil
}
