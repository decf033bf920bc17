package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

// MaxStoredValue — максимальное число, которое помещается в колонку int4.
// Любой вес, ценность или вместимость больше этого значения отклоняется.
const MaxStoredValue = math.MaxInt32

// Problem — экземпляр задачи о рюкзаке 0-1.
//
// Weights[i] и Values[i] описывают i-й предмет.
type Problem struct {
	// Capacity — допустимый суммарный вес.
	Capacity uint32 `json:"capacity" validate:"lte=2147483647"`

	// Weights — веса предметов.
	Weights []uint32 `json:"weights" validate:"dive,lte=2147483647"`

	// Values — ценности предметов.
	Values []uint32 `json:"values" validate:"dive,lte=2147483647"`
}

// problemValidate — общий экземпляр валидатора для Problem.
var problemValidate *validator.Validate

func init() {
	problemValidate = validator.New(validator.WithRequiredStructEnabled())
	problemValidate.RegisterStructValidation(validateItemCount, Problem{})
}

// validateItemCount проверяет, что у каждого предмета есть и вес, и ценность.
func validateItemCount(sl validator.StructLevel) {
	p := sl.Current().Interface().(Problem)
	if len(p.Weights) != len(p.Values) {
		sl.ReportError(p.Values, "Values", "values", "eqlen", "weights")
	}
}

// Validate проверяет инварианты задачи.
// Возвращает ошибку, оборачивающую ErrInvalidProblem.
func (p Problem) Validate() error {
	err := problemValidate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidProblem, describeFieldError(verrs[0]))
	}
	return fmt.Errorf("%w: %v", ErrInvalidProblem, err)
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "lte":
		return fmt.Sprintf("%s exceeds the maximum of %s", fe.Namespace(), fe.Param())
	case "eqlen":
		return "weights and values must have the same length"
	default:
		return fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
	}
}

// Len возвращает количество предметов.
func (p Problem) Len() int {
	return len(p.Weights)
}

// UpperBound возвращает сумму всех ценностей — верхнюю оценку любого решения.
func (p Problem) UpperBound() uint64 {
	var total uint64
	for _, v := range p.Values {
		total += uint64(v)
	}
	return total
}

// Clone возвращает глубокую копию задачи.
func (p Problem) Clone() Problem {
	return Problem{
		Capacity: p.Capacity,
		Weights:  append([]uint32(nil), p.Weights...),
		Values:   append([]uint32(nil), p.Values...),
	}
}
