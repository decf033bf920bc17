// Package solver ищет решение задачи о рюкзаке 0-1 генетическим алгоритмом.
//
// Особь — вектор []bool длины N (предмет взят или нет). Приспособленность —
// сумма ценностей взятых предметов, если их вес не превышает вместимость,
// иначе 0. Недопустимые особи не отбрасываются, а получают нулевую
// приспособленность.
//
// Поколение:
//  1. отбор: лучшие SelectionRatio особей образуют пул родителей;
//  2. скрещивание: одноточечное, пары родителей выбираются из пула случайно;
//  3. мутация: с вероятностью MutationRate в потомке инвертируется один бит;
//  4. замещение: потомки занимают ReplaceRatio популяции, остальное место
//     остаётся лучшим особям предыдущего поколения (элитизм).
//
// Возвращается лучшая особь за все поколения. Результат не обязательно
// оптимален, но всегда допустим: пустой набор — нижняя граница.
package solver
