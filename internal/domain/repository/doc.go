// Package repository define las entidades persistidas y los contratos de
// almacenamiento que consumen los services.
//
// Implementaciones en internal/store/memory (tests, dev) e internal/store/pg.
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Los tokens se guardan hasheados (SHA-256 base64url), nunca en claro
//   - Errores de dominio en errors.go
package repository
