// Package gorm provides GORM-based implementations of the bookmarket
// store interfaces. It is written against PostgreSQL but works with any
// database GORM supports.
//
// # Database Schema
//
// The package auto-migrates the following tables:
//   - users: Accounts, their verification OTP state and profile
//   - books: Marketplace listings owned by sellers
//   - files: Upload records pointing at stored blobs
//
// # Usage
//
//	db, _ := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
//	userStore := gormstore.NewUserStore(db)
//	bookStore := gormstore.NewBookStore(db)
//	fileStore := gormstore.NewFileStore(db)
//
// Open the database with TranslateError enabled so unique constraint
// violations surface as gorm.ErrDuplicatedKey.
package gorm
