//go:build !wasm
// +build !wasm

// Package gorm provides a GORM-backed quickauth.AccountStore.
// It works with any database GORM supports; the quickauth binary wires it
// to MySQL through gorm.io/driver/mysql.
//
// # Database Schema
//
// AutoMigrate creates a single "accounts" table with a unique index on
// username and a plain index on email.
//
// # Usage
//
//	db, _ := gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
//	_ = gormstore.AutoMigrate(db)
//	store := gormstore.NewAccountStore(db)
package gorm
