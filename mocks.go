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

	"github.com/blnkfinance/esusu/model"
)

type MockEsusu struct {
	Esusu
	mockGetCircle        func(string) (*model.Circle, error)
	mockGetBorrowRequest func(string) (*model.BorrowRequest, error)
}

func (m *MockEsusu) GetCircle(id string) (*model.Circle, error) {
	if m.mockGetCircle != nil {
		return m.mockGetCircle(id)
	}
	return m.Esusu.GetCircle(context.Background(), id)
}

func (m *MockEsusu) GetBorrowRequest(id string) (*model.BorrowRequest, error) {
	if m.mockGetBorrowRequest != nil {
		return m.mockGetBorrowRequest(id)
	}
	return m.Esusu.GetBorrowRequest(context.Background(), id)
}
