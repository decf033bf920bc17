// Package worker потребляет очередь problem_submitted и решает tasks.
//
// Обработка сообщения:
//  1. id task из тела сообщения; битое тело уходит в DLQ;
//  2. условный переход submitted → started; повторная доставка
//     (task уже started или завершён) подтверждается без повторного решения;
//  3. ack;
//  4. решение в пуле ограниченного размера. Если пул занят, цикл
//     потребления ждёт свободного места;
//  5. решение повторяется до Config.SolveAttempts раз, затем task
//     переводится в failed. Успешное решение сохраняется вместе с
//     переходом в completed одной транзакцией.
//
// Tasks, зависшие в submitted или started, подбирает sweeper через
// ProcessTask и Resume.
package worker
