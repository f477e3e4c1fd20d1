// Package registry содержит реестр определений узлов.
//
// Реестр — таблица диспетчеризации: строковый тип узла отображается
// на небольшой закрытый набор видов (RuntimeKind). Новый тип узла
// требует только записи в реестре, без изменений валидатора и движка.
package registry
