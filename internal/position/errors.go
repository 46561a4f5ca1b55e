package position

import "fmt"

// Error 타입들은 포지션 사이즈 계산 중 발생할 수 있는 에러를 정의합니다
var (
	ErrInvalidPrice   = fmt.Errorf("유효하지 않은 가격입니다")
	ErrInvalidCapital = fmt.Errorf("유효하지 않은 자본입니다")
)

// SizingError는 포지션 사이즈 계산 에러를 확장한 구조체입니다
type SizingError struct {
	Op  string
	Err error
}

// Error는 error 인터페이스를 구현합니다
func (e *SizingError) Error() string {
	return fmt.Sprintf("포지션 사이즈 에러 [작업: %s]: %v", e.Op, e.Err)
}

// Unwrap은 내부 에러를 반환합니다 (errors.Is/As 지원을 위함)
func (e *SizingError) Unwrap() error {
	return e.Err
}

// NewSizingError는 새로운 SizingError를 생성합니다
func NewSizingError(op string, err error) *SizingError {
	return &SizingError{
		Op:  op,
		Err: err,
	}
}
