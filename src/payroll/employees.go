package payroll

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp-contracts/shadowlink/src/utils/config"
	"github.com/warp-contracts/shadowlink/src/utils/logger"
	"github.com/warp-contracts/shadowlink/src/utils/model"
	"github.com/warp-contracts/shadowlink/src/utils/store"
	"github.com/warp-contracts/shadowlink/src/utils/workflow"
)

// Employer's list of payees
type Employees struct {
	log       *logrus.Entry
	employees store.Collection[model.Employee]
	amounts   *workflow.Amounts
}

type AddEmployeeRequest struct {
	Name          string          `json:"name" validate:"required,max=128"`
	WalletAddress string          `json:"walletAddress" validate:"required"`
	Salary        decimal.Decimal `json:"salary"`

	// internal or external, defaults to external
	PaymentType string `json:"paymentType" validate:"omitempty,oneof=internal external"`
}

// Nil fields stay unchanged
type UpdateEmployeeRequest struct {
	EmployeeId    string           `json:"employeeId" validate:"required"`
	Name          *string          `json:"name" validate:"omitempty,min=1,max=128"`
	WalletAddress *string          `json:"walletAddress" validate:"omitempty,min=1"`
	Salary        *decimal.Decimal `json:"salary"`
	PaymentType   *string          `json:"paymentType" validate:"omitempty,oneof=internal external"`
}

type RemoveEmployeeRequest struct {
	EmployeeId string `json:"employeeId" validate:"required"`
}

func NewEmployees(config *config.Config) (self *Employees) {
	self = new(Employees)
	self.log = logger.NewSublogger("employees")
	self.amounts = workflow.NewAmounts(&config.Asset)
	return
}

func (self *Employees) WithStore(employees store.Collection[model.Employee]) *Employees {
	self.employees = employees
	return self
}

func (self *Employees) AddEmployee(ctx context.Context, employer string, req *AddEmployeeRequest) (employee *model.Employee, err error) {
	err = workflow.Validate(req)
	if err != nil {
		return
	}
	err = self.amounts.Validate(req.Salary)
	if err != nil {
		return
	}
	paymentType, err := workflow.SettlementType(req.PaymentType)
	if err != nil {
		return
	}

	employee = &model.Employee{
		ID:             xid.New().String(),
		EmployerWallet: employer,
		Name:           strings.TrimSpace(req.Name),
		WalletAddress:  strings.TrimSpace(req.WalletAddress),
		Salary:         req.Salary,
		PaymentType:    paymentType,
	}
	if employee.Name == "" || employee.WalletAddress == "" {
		return nil, workflow.Wrap(workflow.ErrValidation, "employee needs a name and a wallet")
	}

	err = self.employees.Create(ctx, employee)
	if err != nil {
		return nil, err
	}

	self.log.WithField("employer", employer).WithField("employee_id", employee.ID).Debug("Employee added")
	return
}

func (self *Employees) UpdateEmployee(ctx context.Context, employer string, req *UpdateEmployeeRequest) (employee *model.Employee, err error) {
	err = workflow.Validate(req)
	if err != nil {
		return
	}

	changes := store.Changes{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, workflow.Wrap(workflow.ErrValidation, "employee name can't be empty")
		}
		changes["name"] = name
	}
	if req.WalletAddress != nil {
		wallet := strings.TrimSpace(*req.WalletAddress)
		if wallet == "" {
			return nil, workflow.Wrap(workflow.ErrValidation, "employee wallet can't be empty")
		}
		changes["wallet_address"] = wallet
	}
	if req.Salary != nil {
		err = self.amounts.Validate(*req.Salary)
		if err != nil {
			return
		}
		changes["salary"] = *req.Salary
	}
	if req.PaymentType != nil {
		var paymentType model.SettlementType
		paymentType, err = workflow.SettlementType(*req.PaymentType)
		if err != nil {
			return
		}
		changes["payment_type"] = paymentType
	}

	err = self.employees.UpdateOne(ctx, req.EmployeeId, store.Filter{"employer_wallet": employer}, changes)
	err = self.explain(req.EmployeeId, err)
	if err != nil {
		return
	}

	employee, err = self.employees.FindOne(ctx, req.EmployeeId)
	return employee, self.explain(req.EmployeeId, err)
}

func (self *Employees) RemoveEmployee(ctx context.Context, employer string, req *RemoveEmployeeRequest) (err error) {
	err = workflow.Validate(req)
	if err != nil {
		return
	}

	err = self.employees.DeleteOne(ctx, req.EmployeeId, store.Filter{"employer_wallet": employer})
	return self.explain(req.EmployeeId, err)
}

// Oldest first, the order payroll runs pay in
func (self *Employees) ListEmployees(ctx context.Context, employer string) ([]*model.Employee, error) {
	return self.employees.FindMany(ctx, store.Filter{"employer_wallet": employer})
}

func (self *Employees) explain(id string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return workflow.Wrap(workflow.ErrNotFound, "employee %s", id)
	case errors.Is(err, store.ErrConflict):
		return workflow.Wrap(workflow.ErrForbidden, "employee %s works for someone else", id)
	}
	return err
}
