package workflow

import (
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/warp-contracts/shadowlink/src/utils/config"
)

// Converts amounts between whole units and the asset's minor units
type Amounts struct {
	decimals int32
	minimum  decimal.Decimal
}

func NewAmounts(config *config.Asset) (self *Amounts) {
	self = new(Amounts)
	self.decimals = config.Decimals
	self.minimum = decimal.RequireFromString(config.MinAmount)
	return
}

func (self *Amounts) Minimum() decimal.Decimal {
	return self.minimum
}

// Checks the amount is transferable
func (self *Amounts) Validate(amount decimal.Decimal) error {
	if amount.LessThan(self.minimum) {
		return Wrap(ErrValidation, "amount %s is below the minimum of %s", amount, self.minimum)
	}
	return nil
}

// Validates and converts to minor units, rounding down
func (self *Amounts) ToMinorUnits(amount decimal.Decimal) (uint64, error) {
	err := self.Validate(amount)
	if err != nil {
		return 0, err
	}

	minor := amount.Shift(self.decimals).Floor()
	if !minor.BigInt().IsUint64() {
		return 0, Wrap(ErrValidation, "amount %s is out of range", amount)
	}
	return minor.BigInt().Uint64(), nil
}

func (self *Amounts) FromMinorUnits(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), -self.decimals)
}
