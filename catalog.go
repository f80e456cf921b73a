package technostore

import (
	"context"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/technostore/technostore/go/evm"
)

// AddProduct adds quantity units of name to the catalog. A new name is
// created at price; for an existing name the price argument is ignored and
// the stored price is kept.
//
// Inputs are validated before ownership, so a zero quantity or price fails
// with InvalidInputs whoever the caller is.
func (s *Store) AddProduct(ctx context.Context, caller common.Address, name string, quantity uint64, price *big.Int) (ProductInfo, error) {
	if name == "" {
		return ProductInfo{}, NewStoreError(ErrCodeInvalidInputs, "product name is empty", nil)
	}
	if quantity == 0 {
		return ProductInfo{}, NewStoreError(ErrCodeInvalidInputs, "quantity must be positive", map[string]interface{}{
			"name": name,
		})
	}
	if price == nil || price.Sign() <= 0 {
		return ProductInfo{}, NewStoreError(ErrCodeInvalidInputs, "price must be positive", map[string]interface{}{
			"name": name,
		})
	}
	if price.Cmp(evm.MaxUint256()) > 0 {
		return ProductInfo{}, NewStoreError(ErrCodeInvalidInputs, "price exceeds uint256", map[string]interface{}{
			"name": name,
		})
	}
	if caller != s.owner {
		return ProductInfo{}, NewStoreError(ErrCodeNotOwner, "caller is not the owner", map[string]interface{}{
			"caller": caller.Hex(),
		})
	}

	p, exists := s.products[name]
	if exists {
		if p.quantity > math.MaxUint64-quantity {
			return ProductInfo{}, NewStoreError(ErrCodeInvalidInputs, "quantity overflow", map[string]interface{}{
				"name":     name,
				"quantity": p.quantity,
				"adding":   quantity,
			})
		}
		p.quantity += quantity
	} else {
		p = &product{
			index:    len(s.names),
			name:     name,
			quantity: quantity,
			price:    new(big.Int).Set(price),
		}
		s.products[name] = p
		s.names = append(s.names, name)
	}

	s.emit(EventProductAdded, name, common.Address{}, quantity)
	return p.info(), nil
}
