package domain

import "errors"

var (
	// ErrNotFound возвращается когда запись не найдена
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput возвращается при некорректных входных данных
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientData возвращается когда истории цен не хватает для индикаторов
	ErrInsufficientData = errors.New("insufficient price data")

	// ErrInsufficientBalance возвращается при недостаточном балансе для покупки
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrPositionAlreadyOpen возвращается при попытке открыть уже открытую позицию
	ErrPositionAlreadyOpen = errors.New("position already open")

	// ErrPositionNotOpen возвращается при операции над закрытой позицией
	ErrPositionNotOpen = errors.New("position not open")

	// ErrNoSymbols возвращается когда не удалось определить ни одного символа для торговли
	ErrNoSymbols = errors.New("no trading symbols configured")

	// ErrExchangeAPI возвращается при ошибке API биржи
	ErrExchangeAPI = errors.New("exchange API error")

	// ErrDatabaseConnection возвращается при ошибке подключения к БД
	ErrDatabaseConnection = errors.New("database connection error")
)
