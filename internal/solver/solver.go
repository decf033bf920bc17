package solver

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/mzacho/knapsack-service/internal/domain"
)

// Config — параметры генетического алгоритма.
type Config struct {
	// PopulationSize — размер популяции.
	PopulationSize int

	// Generations — число поколений.
	Generations int

	// SelectionRatio — доля лучших особей, допущенных к скрещиванию.
	SelectionRatio float64

	// MutationRate — доля генов потомка, инвертируемых мутацией:
	// в среднем MutationRate*N случайных генов. Отрицательное значение
	// отключает мутацию.
	MutationRate float64

	// ReplaceRatio — доля популяции, замещаемая потомками.
	ReplaceRatio float64

	// EarlyExit — остановиться, когда найден набор со всеми предметами
	// (приспособленность равна сумме всех ценностей).
	EarlyExit bool

	// Seed — начальное значение генератора. 0 — случайное при каждом запуске.
	Seed uint64
}

// DefaultConfig возвращает параметры по умолчанию.
func DefaultConfig() Config {
	return Config{
		PopulationSize: 400,
		Generations:    20,
		SelectionRatio: 0.85,
		MutationRate:   0.2,
		ReplaceRatio:   0.85,
		EarlyExit:      true,
	}
}

// Result — лучший найденный набор предметов.
type Result struct {
	// PackedItems — индексы выбранных предметов по возрастанию.
	PackedItems []uint32

	// TotalValue — сумма ценностей выбранных предметов.
	TotalValue uint64

	// TotalWeight — суммарный вес выбранных предметов.
	TotalWeight uint64

	// Generations — сколько поколений было просчитано.
	Generations int
}

// Solver — генетический решатель. Безопасен для параллельного
// использования: каждый Solve работает со своим генератором.
type Solver struct {
	cfg Config
}

// New создаёт Solver. Нулевые числовые поля cfg заменяются значениями
// по умолчанию. EarlyExit не меняется.
func New(cfg Config) *Solver {
	def := DefaultConfig()
	if cfg.PopulationSize <= 1 {
		cfg.PopulationSize = def.PopulationSize
	}
	if cfg.Generations <= 0 {
		cfg.Generations = def.Generations
	}
	if cfg.SelectionRatio <= 0 || cfg.SelectionRatio > 1 {
		cfg.SelectionRatio = def.SelectionRatio
	}
	switch {
	case cfg.MutationRate < 0:
		cfg.MutationRate = 0
	case cfg.MutationRate == 0 || cfg.MutationRate > 1:
		cfg.MutationRate = def.MutationRate
	}
	if cfg.ReplaceRatio <= 0 || cfg.ReplaceRatio >= 1 {
		cfg.ReplaceRatio = def.ReplaceRatio
	}
	return &Solver{cfg: cfg}
}

// Solve ищет набор предметов с максимальной ценностью.
//
// ctx проверяется между поколениями; при отмене возвращается ctx.Err().
func (s *Solver) Solve(ctx context.Context, p domain.Problem) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	n := p.Len()
	if n == 0 {
		return &Result{PackedItems: []uint32{}}, nil
	}

	seed := s.cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	r := &run{
		cfg:     s.cfg,
		problem: p,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		upper:   p.UpperBound(),
	}
	return r.evolve(ctx)
}

// individual — особь и её приспособленность.
type individual struct {
	genome  []bool
	fitness uint64
}

// run — состояние одного запуска.
type run struct {
	cfg     Config
	problem domain.Problem
	rng     *rand.Rand
	upper   uint64

	best individual
}

func (r *run) evolve(ctx context.Context) (*Result, error) {
	n := r.problem.Len()

	// Пустой набор всегда допустим.
	r.best = individual{genome: make([]bool, n)}

	population := make([]individual, r.cfg.PopulationSize)
	for i := range population {
		genome := make([]bool, n)
		for j := range genome {
			genome[j] = r.rng.IntN(2) == 1
		}
		population[i] = r.evaluate(genome)
	}
	return r.evolveFrom(ctx, population)
}

// evolveFrom прогоняет поколения, начиная с заданной популяции.
func (r *run) evolveFrom(ctx context.Context, population []individual) (*Result, error) {
	generations := 0
	for generations < r.cfg.Generations {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("solve interrupted at generation %d: %w", generations, err)
		}
		if r.cfg.EarlyExit && r.best.fitness == r.upper {
			break
		}
		population = r.nextGeneration(population)
		generations++
	}

	return r.result(generations), nil
}

// evaluate считает приспособленность и обновляет лучшую особь.
func (r *run) evaluate(genome []bool) individual {
	var weight, value uint64
	for i, selected := range genome {
		if selected {
			weight += uint64(r.problem.Weights[i])
			value += uint64(r.problem.Values[i])
		}
	}

	ind := individual{genome: genome}
	if weight <= uint64(r.problem.Capacity) {
		ind.fitness = value
	}

	if ind.fitness > r.best.fitness {
		r.best = individual{genome: slices.Clone(genome), fitness: ind.fitness}
	}
	return ind
}

func (r *run) nextGeneration(population []individual) []individual {
	size := len(population)

	// Сортировка по убыванию приспособленности.
	slices.SortStableFunc(population, func(a, b individual) int {
		switch {
		case a.fitness > b.fitness:
			return -1
		case a.fitness < b.fitness:
			return 1
		default:
			return 0
		}
	})

	poolSize := max(2, int(math.Ceil(r.cfg.SelectionRatio*float64(size))))
	poolSize = min(poolSize, size)
	pool := population[:poolSize]

	offspring := int(math.Round(r.cfg.ReplaceRatio * float64(size)))
	offspring = max(1, min(offspring, size-1))
	elites := size - offspring

	next := make([]individual, 0, size)
	next = append(next, population[:elites]...)

	for len(next) < size {
		a := pool[r.rng.IntN(len(pool))]
		b := pool[r.rng.IntN(len(pool))]

		child := r.crossover(a.genome, b.genome)
		r.mutate(child)
		next = append(next, r.evaluate(child))
	}
	return next
}

// crossover — одноточечное скрещивание: гены a до точки, гены b после.
func (r *run) crossover(a, b []bool) []bool {
	n := len(a)
	child := make([]bool, n)
	if n == 1 {
		copy(child, a)
		return child
	}
	point := 1 + r.rng.IntN(n-1)
	copy(child[:point], a[:point])
	copy(child[point:], b[point:])
	return child
}

// mutate инвертирует floor(MutationRate*N + U[0,1)) различных генов.
func (r *run) mutate(genome []bool) {
	if r.cfg.MutationRate <= 0 {
		return
	}
	n := len(genome)
	flips := min(n, int(r.cfg.MutationRate*float64(n)+r.rng.Float64()))
	if flips == 0 {
		return
	}
	for _, i := range r.rng.Perm(n)[:flips] {
		genome[i] = !genome[i]
	}
}

func (r *run) result(generations int) *Result {
	res := &Result{
		PackedItems: []uint32{},
		TotalValue:  r.best.fitness,
		Generations: generations,
	}
	for i, selected := range r.best.genome {
		if selected {
			res.PackedItems = append(res.PackedItems, uint32(i))
			res.TotalWeight += uint64(r.problem.Weights[i])
		}
	}
	return res
}
