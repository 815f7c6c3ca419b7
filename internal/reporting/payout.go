package reporting

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/a4s/shopledger/internal/shared"
)

// dayPayouts computes commission for one day's sales. Services count toward
// the mechanic's total whatever the sale's payment status. A positive total
// under quota is topped up by the shop to the quota.
func dayPayouts(day []SaleLine, quota decimal.Decimal) []MechanicPayout {
	byMechanic := map[int64]*MechanicPayout{}
	var order []int64
	for _, s := range day {
		if s.MechanicID == nil {
			continue
		}
		p, ok := byMechanic[*s.MechanicID]
		if !ok {
			p = &MechanicPayout{MechanicID: *s.MechanicID, Name: s.MechanicName, CommissionRate: s.CommissionRate}
			byMechanic[*s.MechanicID] = p
			order = append(order, *s.MechanicID)
		}
		p.ServicesTotal = p.ServicesTotal.Add(s.ServicesTotal)
	}
	out := make([]MechanicPayout, 0, len(order))
	for _, id := range order {
		p := byMechanic[id]
		if !p.ServicesTotal.IsPositive() {
			continue
		}
		p.EffectiveBase = p.ServicesTotal
		if p.ServicesTotal.LessThan(quota) {
			p.ShopTopUp = shared.Round2(quota.Sub(p.ServicesTotal))
			p.EffectiveBase = quota
		}
		p.Commission = shared.Round2(p.CommissionRate.Mul(p.EffectiveBase))
		out = append(out, *p)
	}
	return out
}

// mergePayouts sums per-day payouts into one row per mechanic, by name.
func mergePayouts(days [][]MechanicPayout) []MechanicPayout {
	byMechanic := map[int64]*MechanicPayout{}
	for _, day := range days {
		for _, p := range day {
			acc, ok := byMechanic[p.MechanicID]
			if !ok {
				cp := p
				byMechanic[p.MechanicID] = &cp
				continue
			}
			acc.ServicesTotal = acc.ServicesTotal.Add(p.ServicesTotal)
			acc.EffectiveBase = acc.EffectiveBase.Add(p.EffectiveBase)
			acc.ShopTopUp = acc.ShopTopUp.Add(p.ShopTopUp)
			acc.Commission = acc.Commission.Add(p.Commission)
		}
	}
	out := make([]MechanicPayout, 0, len(byMechanic))
	for _, p := range byMechanic {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].MechanicID < out[j].MechanicID
	})
	return out
}
