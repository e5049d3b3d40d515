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
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a Api) GetTransaction(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.esusu.GetTransaction(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetCircleTransactions(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.esusu.GetCircleTransactions(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetAddressTransactions(c *gin.Context) {
	address, passed := c.Params.Get("address")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required. pass address in the route /:address"})
		return
	}

	resp, err := a.esusu.GetAddressTransactions(c.Request.Context(), address)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetLedgerBalance reads an address balance straight from the ledger node.
func (a Api) GetLedgerBalance(c *gin.Context) {
	address, passed := c.Params.Get("address")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required. pass address in the route /:address"})
		return
	}

	balance, err := a.esusu.GetLedgerBalance(c.Request.Context(), address)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"address": address, "balance": balance})
}
