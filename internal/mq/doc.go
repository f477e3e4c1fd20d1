// Package mq — транспорт flowgen поверх RabbitMQ.
//
//   - connection.go — соединение с переподключением
//   - topology.go   — обменники flowgen.runs и flowgen.events
//   - publisher.go  — заявки на запуск и события журнала
//   - consumer.go   — цикл потребления для воркера
//   - fanout.go     — RunRepository, дублирующий события в брокер
//
// Брокер необязателен: без AMQP_URL воркер опрашивает RequestStore,
// а события остаются только в хранилище.
package mq
