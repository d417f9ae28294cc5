package ratemodel

import (
	"log"
	"sort"

	"RateKeeper/internal/model"

	"github.com/ethereum/go-ethereum/common"
)

// IsWard reports whether addr may call SetVariableRateSlope1.
func (m *RateModel) IsWard(addr common.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.wards[addr]
}

// Wards returns the authorized addresses in byte order.
func (m *RateModel) Wards() []common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]common.Address, 0, len(m.wards))
	for addr := range m.wards {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

// ActiveUpdater returns the address last installed with GrantUpdater.
func (m *RateModel) ActiveUpdater() common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeUpdater
}

// Rely authorizes addr to mutate slope1.
func (m *RateModel) Rely(caller, addr common.Address) error {
	if err := m.checkConfigurator(caller); err != nil {
		return err
	}
	m.mu.Lock()
	m.wards[addr] = true
	at := m.now()
	m.mu.Unlock()

	m.emit(model.RateEvent{Kind: model.EventWardRelied, Caller: caller, Subject: addr, At: at})
	return nil
}

// Deny revokes addr. Denying the active updater leaves ActiveUpdater unchanged
// but the address can no longer commit.
func (m *RateModel) Deny(caller, addr common.Address) error {
	if err := m.checkConfigurator(caller); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.wards, addr)
	at := m.now()
	m.mu.Unlock()

	m.emit(model.RateEvent{Kind: model.EventWardDenied, Caller: caller, Subject: addr, At: at})
	return nil
}

// GrantUpdater installs addr as the single active updater: addr becomes a
// ward and the previous active updater loses its ward. Other wards added
// through Rely are not touched.
func (m *RateModel) GrantUpdater(caller, addr common.Address) error {
	if err := m.checkConfigurator(caller); err != nil {
		return err
	}
	m.mu.Lock()
	prev := m.activeUpdater
	m.wards[addr] = true
	revoked := prev != addr
	if revoked {
		delete(m.wards, prev)
	}
	m.activeUpdater = addr
	at := m.now()
	m.mu.Unlock()

	log.Printf("[INFO] rate updater granted to %s (previous %s)", addr.Hex(), prev.Hex())
	if revoked {
		m.emit(model.RateEvent{Kind: model.EventWardDenied, Caller: caller, Subject: prev, At: at})
	}
	m.emit(model.RateEvent{Kind: model.EventUpdaterGranted, Caller: caller, Subject: addr, At: at})
	return nil
}
