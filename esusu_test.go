/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package esusu

import (
	"context"
	"log"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"

	"github.com/blnkfinance/esusu/config"
	"github.com/blnkfinance/esusu/database"
	"github.com/blnkfinance/esusu/gateway"
)

type stubPayment struct {
	From   string
	To     string
	Amount decimal.Decimal
}

// stubGateway is an in-memory Gateway for service tests.
type stubGateway struct {
	mu         sync.Mutex
	balance    decimal.Decimal
	submitErr  error
	submitted  []stubPayment
	nextHash   string
	balanceErr error
}

func (s *stubGateway) Connect(_ context.Context) error { return nil }

func (s *stubGateway) GetBalance(_ context.Context, _ string) (decimal.Decimal, error) {
	if s.balanceErr != nil {
		return decimal.Zero, s.balanceErr
	}
	return s.balance, nil
}

func (s *stubGateway) SubmitPayment(_ context.Context, from, to string, amount decimal.Decimal) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitErr != nil {
		return "", s.submitErr
	}
	s.submitted = append(s.submitted, stubPayment{From: from, To: to, Amount: amount})
	if s.nextHash != "" {
		return s.nextHash, nil
	}
	return "HASH", nil
}

func (s *stubGateway) Disconnect() error { return nil }

func (s *stubGateway) payments() []stubPayment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]stubPayment(nil), s.submitted...)
}

func newTestEsusu(t *testing.T) (*Esusu, sqlmock.Sqlmock, *stubGateway) {
	t.Helper()

	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
		Ledger: config.LedgerConfig{
			Endpoint:    "http://localhost:5005",
			PoolAddress: "rPoolAddress",
		},
	})

	db, mock, err := sqlmock.New()
	if err != nil {
		log.Printf("an error '%s' was not expected when opening a stub database Connection", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	datasource := &database.Datasource{Conn: db}
	gw := &stubGateway{}

	service, err := NewEsusu(datasource, gw)
	if err != nil {
		t.Fatalf("Error creating Esusu instance: %s", err)
	}
	return service, mock, gw
}

var _ gateway.Gateway = (*stubGateway)(nil)
