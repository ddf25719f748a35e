package mapping

import (
	"github.com/tradekit/landed_cost_app/internal/core/domain"
	"github.com/tradekit/landed_cost_app/internal/models"
)

// ToModelRateRecord converts a domain RateRecord to a model RateRecord
func ToModelRateRecord(d domain.RateRecord) models.RateRecord {
	return models.RateRecord{
		RateID:        d.RateID,
		Destination:   d.Scope.Destination,
		Origin:        d.Scope.Origin,
		ProductCode:   d.Scope.ProductCode,
		Kind:          string(d.Kind),
		Value:         d.Value,
		ValueUnit:     string(d.ValueUnit),
		Currency:      d.Currency,
		ScheduleRef:   d.ScheduleRef,
		Source:        string(d.Source),
		EffectiveFrom: d.EffectiveFrom,
		EffectiveTo:   d.EffectiveTo,
		Dataset:       d.Dataset,
		AuditFields:   ToModelAuditFields(d.AuditFields),
	}
}

// ToDomainRateRecord converts a model RateRecord to a domain RateRecord
func ToDomainRateRecord(m models.RateRecord) domain.RateRecord {
	return domain.RateRecord{
		RateID: m.RateID,
		Scope: domain.ScopeKeys{
			Destination: m.Destination,
			Origin:      m.Origin,
			ProductCode: m.ProductCode,
		},
		Kind:          domain.RateKind(m.Kind),
		Value:         m.Value,
		ValueUnit:     domain.ValueUnit(m.ValueUnit),
		Currency:      m.Currency,
		ScheduleRef:   m.ScheduleRef,
		Source:        domain.RateSource(m.Source),
		EffectiveFrom: m.EffectiveFrom,
		EffectiveTo:   m.EffectiveTo,
		Dataset:       m.Dataset,
		AuditFields:   ToDomainAuditFields(m.AuditFields),
	}
}

// ToDomainRateRecordSlice converts a slice of model RateRecords to domain RateRecords
func ToDomainRateRecordSlice(ms []models.RateRecord) []domain.RateRecord {
	ds := make([]domain.RateRecord, len(ms))
	for i, m := range ms {
		ds[i] = ToDomainRateRecord(m)
	}
	return ds
}

// ToModelDutyComponent converts a domain DutyComponent to a model DutyComponent
func ToModelDutyComponent(d domain.DutyComponent) models.DutyComponent {
	return models.DutyComponent{
		ComponentID:       d.ComponentID,
		ParentRateID:      d.ParentRateID,
		Type:              string(d.Type),
		RatePct:           d.RatePct,
		Amount:            d.Amount,
		Currency:          d.Currency,
		UnitOfMeasure:     d.UnitOfMeasure,
		Qualifier:         d.Qualifier,
		CombinatorFormula: d.CombinatorFormula,
		EffectiveFrom:     d.EffectiveFrom,
		EffectiveTo:       d.EffectiveTo,
	}
}

// ToDomainDutyComponent converts a model DutyComponent to a domain DutyComponent
func ToDomainDutyComponent(m models.DutyComponent) domain.DutyComponent {
	return domain.DutyComponent{
		ComponentID:       m.ComponentID,
		ParentRateID:      m.ParentRateID,
		Type:              domain.DutyComponentType(m.Type),
		RatePct:           m.RatePct,
		Amount:            m.Amount,
		Currency:          m.Currency,
		UnitOfMeasure:     m.UnitOfMeasure,
		Qualifier:         m.Qualifier,
		CombinatorFormula: m.CombinatorFormula,
		EffectiveFrom:     m.EffectiveFrom,
		EffectiveTo:       m.EffectiveTo,
	}
}

// ToDomainDutyComponentSlice converts a slice of model DutyComponents to domain DutyComponents
func ToDomainDutyComponentSlice(ms []models.DutyComponent) []domain.DutyComponent {
	ds := make([]domain.DutyComponent, len(ms))
	for i, m := range ms {
		ds[i] = ToDomainDutyComponent(m)
	}
	return ds
}
