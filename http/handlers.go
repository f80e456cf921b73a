package http

import (
	"errors"
	"io"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/technostore/technostore/go/evm"
)

// PurchaseResponse is the body of GET /v1/products/:index/purchases/:buyer.
// Height is 0 when buyer holds no open purchase.
type PurchaseResponse struct {
	Index  int            `json:"index"`
	Buyer  common.Address `json:"buyer"`
	Height uint64         `json:"height"`
	Open   bool           `json:"open"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "height": s.node.Height()})
}

func (s *Server) storeInfo(c *gin.Context) {
	info, err := s.node.Info()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) listProducts(c *gin.Context) {
	c.JSON(http.StatusOK, s.node.Products())
}

func (s *Server) getProduct(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	p, err := s.node.Product(index)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) listBuyers(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	buyers, err := s.node.Buyers(index)
	if err != nil {
		writeError(c, err)
		return
	}
	if buyers == nil {
		buyers = []common.Address{}
	}
	c.JSON(http.StatusOK, buyers)
}

func (s *Server) getPurchase(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	buyer, ok := addressParam(c, "buyer", c.Param("buyer"))
	if !ok {
		return
	}
	height, err := s.node.PurchaseHeight(index, buyer)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, PurchaseResponse{Index: index, Buyer: buyer, Height: height, Open: height != 0})
}

func (s *Server) permitHash(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	owner, ok := addressParam(c, "owner", c.Query("owner"))
	if !ok {
		return
	}
	deadline, err := evm.ParseUint256(c.Query("deadline"))
	if err != nil {
		badRequest(c, "invalid deadline", map[string]interface{}{"deadline": c.Query("deadline")})
		return
	}

	req, err := s.node.PermitRequest(c.Request.Context(), index, owner, deadline)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) getAccount(c *gin.Context) {
	who, ok := addressParam(c, "address", c.Param("address"))
	if !ok {
		return
	}
	acct, err := s.node.Account(c.Request.Context(), who)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

func (s *Server) listEvents(c *gin.Context) {
	from, ok := fromQuery(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.node.Events(from))
}

// streamEvents sends the events with Seq >= from, then every new event, as
// server-sent events. A "subscribed" event marks the switch to live events.
func (s *Server) streamEvents(c *gin.Context) {
	from, ok := fromQuery(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	live := s.node.Subscribe(ctx)
	backlog := s.node.Events(from)
	last := from - 1
	if n := len(backlog); n > 0 {
		last = backlog[n-1].Seq
	}

	for _, e := range backlog {
		c.SSEvent(string(e.Kind), e)
	}
	c.SSEvent("subscribed", gin.H{"seq": last})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case e, open := <-live:
			if !open {
				return false
			}
			if e.Seq <= last {
				return true
			}
			c.SSEvent(string(e.Kind), e)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func (s *Server) submitTx(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, "cannot read request body", nil)
		return
	}
	tx, err := ValidateTx(body)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			badRequest(c, "request body does not match schema", map[string]interface{}{"errors": verr.Errors})
			return
		}
		badRequest(c, err.Error(), nil)
		return
	}

	receipt, err := s.submitter.Submit(c.Request.Context(), tx)
	if err != nil {
		writeError(c, err)
		return
	}
	if !receipt.Succeeded() && receipt.Error != nil {
		c.JSON(StatusForCode(receipt.Error.Code), receipt)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "invalid product index", map[string]interface{}{"index": c.Param("index")})
		return 0, false
	}
	return index, true
}

func addressParam(c *gin.Context, name, value string) (common.Address, bool) {
	addr, err := evm.ParseAddress(value)
	if err != nil {
		badRequest(c, "invalid "+name, map[string]interface{}{name: value})
		return common.Address{}, false
	}
	return addr, true
}

func fromQuery(c *gin.Context) (uint64, bool) {
	raw := c.DefaultQuery("from", "1")
	from, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || from == 0 {
		badRequest(c, "invalid from", map[string]interface{}{"from": raw})
		return 0, false
	}
	return from, true
}

func bigQuery(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
