package app

import "time"

// Clock overrides for deterministic tests.

func (s *CredentialService) SetNow(now func() time.Time) { s.now = now }

func (s *AttendanceService) SetNow(now func() time.Time) { s.now = now }

func (s *AuthService) SetNow(now func() time.Time) { s.now = now }

func (s *SessionService) SetNow(now func() time.Time) { s.now = now }
