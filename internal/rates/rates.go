// Package rates computes borrowing rates, collateral requirements and risk
// figures for collateralized loans. All functions are pure and stateless.
//
// Monetary values use shopspring/decimal — never float64 for money.
// The continuous-compounding accrual converts to float64 only for the
// transcendental step (math.Expm1) and immediately back to decimal.
package rates

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Fixed nominal annual rates (percent) per borrowable asset. Unknown symbols
// fall back to DefaultRate so rate resolution is total and never fails.
var assetRates = map[string]decimal.Decimal{
	"USDC": decimal.NewFromFloat(5.2),
	"USDT": decimal.NewFromFloat(5.5),
	"DAI":  decimal.NewFromFloat(4.5),
	"ETH":  decimal.NewFromInt(10),
	"WBTC": decimal.NewFromInt(10),
}

// DefaultRate applies to any asset missing from the table. One documented
// default; the volatile 10% figure is reachable only through the table.
var DefaultRate = decimal.NewFromInt(5)

// USD-pegged assets priced 1:1 without an oracle lookup.
var stableAssets = map[string]bool{
	"USDC": true,
	"USDT": true,
	"DAI":  true,
}

// IsStableAsset reports whether asset is treated as USD-pegged.
func IsStableAsset(asset string) bool { return stableAssets[asset] }

// SecondsPerYear is the accrual year basis (365 days).
const SecondsPerYear = 365 * 24 * 3600

var hundred = decimal.NewFromInt(100)

// InterestRateFor returns the fixed annual rate (percent) for asset.
func InterestRateFor(asset string) decimal.Decimal {
	if r, ok := assetRates[asset]; ok {
		return r
	}
	return DefaultRate
}

// RequiredCollateral returns the collateral value needed to open a position
// of principalValue at targetLTVPercent, rounded up at the cent so the
// requirement is never understated.
//
// targetLTVPercent must be positive; callers validate before invoking.
func RequiredCollateral(principalValue, targetLTVPercent decimal.Decimal) decimal.Decimal {
	return principalValue.Div(targetLTVPercent.Div(hundred)).RoundCeil(2)
}

// EffectiveLTV returns principal/collateral as a percentage, or zero when
// either side is non-positive (no risk to report on an empty position).
func EffectiveLTV(principalValue, collateralValue decimal.Decimal) decimal.Decimal {
	if !principalValue.IsPositive() || !collateralValue.IsPositive() {
		return decimal.Zero
	}
	return principalValue.Div(collateralValue).Mul(hundred)
}

// CollateralizationRatio returns collateral/principal as a percentage, with
// the same zero guard as EffectiveLTV.
func CollateralizationRatio(collateralValue, principalValue decimal.Decimal) decimal.Decimal {
	if !principalValue.IsPositive() || !collateralValue.IsPositive() {
		return decimal.Zero
	}
	return collateralValue.Div(principalValue).Mul(hundred)
}

// LiquidationPriceVolatileDebt derives the price of a borrowed volatile
// asset at which the debt reaches thresholdPercent of the (stable)
// collateral. Liquidation triggers when the asset price rises to it.
//
//	price = (threshold/100 × collateralValue) / (borrowedValue / entryPrice)
//
// Returns zero if any input is non-positive; zero means "not computable",
// never a real price.
func LiquidationPriceVolatileDebt(borrowedValue, collateralValue, entryPrice, thresholdPercent decimal.Decimal) decimal.Decimal {
	if !borrowedValue.IsPositive() || !collateralValue.IsPositive() ||
		!entryPrice.IsPositive() || !thresholdPercent.IsPositive() {
		return decimal.Zero
	}
	assetAmount := borrowedValue.Div(entryPrice)
	return thresholdPercent.Div(hundred).Mul(collateralValue).Div(assetAmount)
}

// LiquidationPriceVolatileCollateral derives the price of volatile
// collateral at which its value drops below the threshold multiple of the
// (stable) debt. Liquidation triggers when the collateral price falls to it.
//
//	price = debtValue / ((collateralValue / entryPrice) × threshold/100)
func LiquidationPriceVolatileCollateral(debtValue, collateralValue, entryPrice, thresholdPercent decimal.Decimal) decimal.Decimal {
	if !debtValue.IsPositive() || !collateralValue.IsPositive() ||
		!entryPrice.IsPositive() || !thresholdPercent.IsPositive() {
		return decimal.Zero
	}
	collateralAmount := collateralValue.Div(entryPrice)
	return debtValue.Div(collateralAmount.Mul(thresholdPercent).Div(hundred))
}

// RiskBand is the banded classification of a position's current LTV.
type RiskBand struct {
	Level       string `json:"level"`
	Description string `json:"description"`
}

// Band boundaries (percent LTV, inclusive upper bounds). Tunable, but the
// ordering Safe < Moderate < High must hold for Classify to stay monotonic.
var (
	SafeMaxLTV     = decimal.NewFromInt(40)
	ModerateMaxLTV = decimal.NewFromInt(55)
	HighMaxLTV     = decimal.NewFromInt(70)
)

// Classify maps a current LTV percentage to its risk band. Higher LTV never
// maps to a lower band.
func Classify(ltvPercent decimal.Decimal) RiskBand {
	switch {
	case ltvPercent.LessThanOrEqual(SafeMaxLTV):
		return RiskBand{Level: "Safe", Description: "comfortably collateralized"}
	case ltvPercent.LessThanOrEqual(ModerateMaxLTV):
		return RiskBand{Level: "Moderate", Description: "monitor collateral value"}
	case ltvPercent.LessThanOrEqual(HighMaxLTV):
		return RiskBand{Level: "High", Description: "approaching liquidation threshold"}
	default:
		return RiskBand{Level: "Critical", Description: "eligible for liquidation soon"}
	}
}

// AccruedInterestContinuous returns the continuously compounded interest on
// principal at annualRatePercent after elapsed time:
//
//	principal × (e^(rate/100 × elapsed/SecondsPerYear) − 1)
//
// Negative elapsed or rate accrues nothing. For fixed principal and rate the
// result is non-decreasing in elapsed: the exponent grows linearly with
// elapsed and Expm1 is monotonic, so recomputing from a live clock can never
// move accrued interest backward.
func AccruedInterestContinuous(principal, annualRatePercent decimal.Decimal, elapsed time.Duration) decimal.Decimal {
	if elapsed <= 0 || !principal.IsPositive() || annualRatePercent.IsNegative() {
		return decimal.Zero
	}
	exponent := annualRatePercent.InexactFloat64() / 100 * elapsed.Seconds() / SecondsPerYear
	growth := math.Expm1(exponent)
	return principal.Mul(decimal.NewFromFloat(growth))
}
