package core

// Error codes reference
//
// Errors are mapped to Portuguese messages carrying a short code that
// operators can quote when reporting a problem. Codes are grouped by
// category:
//
//	DB   database and connectivity
//	VAL  manual edit validation
//	FILE upload handling and CSV parsing
//	IMP  import pipeline
//	AUTH users and sessions
//	REQ  request lifecycle
//
// Patterns are matched case-insensitively against err.Error(); the first
// match wins, so specific patterns precede generic ones.

import (
	"fmt"
	"strings"
)

// UserMessage is the caller-facing description of an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Import pipeline
	{"invalid import type", UserMessage{
		Message: `Tipo de importação inválido. Use "adesoes" ou "nova_ligacao".`,
		Action:  "Escolha o tipo de importação antes de enviar o ficheiro",
		Code:    "IMP001",
	}},
	{"missing required column", UserMessage{
		Message: "Erro ao processar o ficheiro CSV. Verifique se a coluna 'matrícula' existe no ficheiro.",
		Action:  "Confirme que o cabeçalho tem uma coluna Matrícula",
		Code:    "IMP002",
	}},
	{"too many imports", UserMessage{
		Message: "Já existe uma importação em curso.",
		Action:  "Aguarde alguns instantes e tente novamente",
		Code:    "IMP003",
	}},
	{"unknown community", UserMessage{
		Message: "Prefixo não definido para a comunidade.",
		Action:  "Verifique o nome da comunidade na coluna COMUNIDADE",
		Code:    "IMP004",
	}},
	{"row has no comunidade", UserMessage{
		Message: "Campo COMUNIDADE ausente na linha.",
		Action:  "Preencha a coluna COMUNIDADE",
		Code:    "IMP005",
	}},

	// File handling
	{"file too large", UserMessage{
		Message: "O ficheiro excede o tamanho máximo permitido.",
		Action:  "Divida o ficheiro em partes menores",
		Code:    "FILE001",
	}},
	{"invalid csv", UserMessage{
		Message: "O ficheiro CSV está mal formatado.",
		Action:  "Exporte novamente a folha de cálculo como CSV",
		Code:    "FILE002",
	}},
	{"no file provided", UserMessage{
		Message: "Nenhum ficheiro CSV enviado.",
		Action:  "Selecione um ficheiro CSV",
		Code:    "FILE003",
	}},
	{"empty file", UserMessage{
		Message: "O ficheiro CSV está vazio ou mal formatado.",
		Action:  "Envie um ficheiro com pelo menos uma linha de dados",
		Code:    "FILE004",
	}},

	// Database
	{"duplicate key", UserMessage{
		Message: "Já existe um registo com este identificador.",
		Action:  "Verifique valores repetidos",
		Code:    "DB001",
	}},
	{"violates foreign key", UserMessage{
		Message: "O registo referenciado não existe.",
		Code:    "DB002",
	}},
	{"value too long", UserMessage{
		Message: "Valor demasiado longo para a coluna.",
		Action:  "Reduza o tamanho do valor",
		Code:    "DB003",
	}},
	{"invalid input syntax", UserMessage{
		Message: "Valor com formato inválido para a coluna.",
		Code:    "DB004",
	}},
	{"connection refused", UserMessage{
		Message: "Não foi possível ligar à base de dados.",
		Action:  "Tente novamente dentro de alguns instantes",
		Code:    "DB005",
	}},
	{"deadlock", UserMessage{
		Message: "A base de dados está ocupada com operações em conflito.",
		Action:  "Tente novamente",
		Code:    "DB006",
	}},

	// Manual edits
	{"unknown field", UserMessage{
		Message: "Campo desconhecido.",
		Code:    "VAL001",
	}},
	{"no fields to update", UserMessage{
		Message: "Nenhum campo para atualizar.",
		Code:    "VAL002",
	}},
	{"invalid date", UserMessage{
		Message: "Data inválida.",
		Action:  "Use o formato DD/MM/AAAA",
		Code:    "VAL003",
	}},
	{"invalid integer", UserMessage{
		Message: "Número inteiro inválido.",
		Code:    "VAL004",
	}},
	{"invalid number", UserMessage{
		Message: "Número inválido.",
		Action:  "Use vírgula ou ponto como separador decimal",
		Code:    "VAL005",
	}},
	{"invalid boolean", UserMessage{
		Message: "Valor inválido, use sim ou não.",
		Code:    "VAL006",
	}},
	{"field not permitted", UserMessage{
		Message: "Acesso negado. Você não tem permissão para editar este campo.",
		Code:    "VAL007",
	}},

	// Users and sessions
	{"login already exists", UserMessage{
		Message: "Nome de usuário já existe.",
		Code:    "AUTH001",
	}},
	{"invalid credentials", UserMessage{
		Message: "Usuário ou senha inválidos.",
		Code:    "AUTH002",
	}},
	{"password too short", UserMessage{
		Message: "A senha deve ter no mínimo 8 caracteres.",
		Code:    "AUTH003",
	}},

	// Request lifecycle
	{"context canceled", UserMessage{
		Message: "O pedido foi cancelado.",
		Action:  "Tente novamente",
		Code:    "REQ001",
	}},
	{"deadline exceeded", UserMessage{
		Message: "A operação excedeu o tempo limite.",
		Action:  "Tente com um ficheiro menor ou mais tarde",
		Code:    "REQ002",
	}},
	{"timeout", UserMessage{
		Message: "A operação excedeu o tempo limite.",
		Action:  "Tente novamente mais tarde",
		Code:    "REQ002",
	}},

	{"not found", UserMessage{
		Message: "Registo não encontrado.",
		Code:    "NF001",
	}},
}

// defaultMessage is returned when no pattern matches.
var defaultMessage = UserMessage{
	Message: "Erro interno do servidor.",
	Action:  "Tente novamente ou contacte o suporte",
	Code:    "ERR000",
}

// MapError converts an error to its caller-facing message. Unmatched
// errors map to the generic ERR000 message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders MapError as "Message (Código: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	if msg.Action == "" {
		return fmt.Sprintf("%s (Código: %s)", msg.Message, msg.Code)
	}
	return fmt.Sprintf("%s (Código: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
