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
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/blnkfinance/esusu/config"
	"github.com/blnkfinance/esusu/database"
	"github.com/blnkfinance/esusu/gateway"
	"github.com/blnkfinance/esusu/internal/apierror"
	redis_db "github.com/blnkfinance/esusu/internal/redis-db"
)

// Esusu represents the main struct for the Esusu application.
type Esusu struct {
	queue      *Queue
	redis      redis.UniversalClient
	datasource database.IDataSource
	gateway    gateway.Gateway
}

// NewEsusu initializes a new instance of Esusu with the provided datasource
// and ledger gateway. It fetches the configuration and initializes the Redis
// client and the webhook queue.
func NewEsusu(db database.IDataSource, gw gateway.Gateway) (*Esusu, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient(configuration.Redis.Dns)
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)

	newEsusu := &Esusu{datasource: db, queue: newQueue, redis: redisClient.Client(), gateway: gw}
	return newEsusu, nil
}

// GetLedgerBalance returns the on-ledger balance for an address. A node
// failure surfaces as a gateway error, never as a zero balance.
func (l *Esusu) GetLedgerBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	balance, err := l.gateway.GetBalance(ctx, address)
	if err != nil {
		if errors.Is(err, gateway.ErrAddressUnknown) {
			return decimal.Zero, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Address '%s' is not known to the ledger", address), err)
		}
		return decimal.Zero, apierror.NewGatewayError("Failed to read ledger balance", err, gateway.Retryable(err))
	}
	return balance, nil
}
