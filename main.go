package main

import (
	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"

	"verification/config"
	"verification/contract"
)

var logger = flogging.MustGetLogger("verification.main")

func main() {
	var cfg config.Chaincode
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("Error loading chaincode configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		config.Exitf("Invalid chaincode configuration: %v", err)
	}
	programID, err := config.ProgramID(cfg.ProgramID)
	if err != nil {
		config.Exitf("Invalid chaincode configuration: %v", err)
	}

	cc, err := contractapi.NewChaincode(contract.NewVerificationContract(programID))
	if err != nil {
		panic("Error creating VerificationContract: " + err.Error())
	}

	if !cfg.RunAsServer() {
		if err := cc.Start(); err != nil {
			panic("Error starting chaincode: " + err.Error())
		}
		return
	}

	tlsProps := shim.TLSProperties{Disabled: true}
	material, err := cfg.LoadTLS()
	if err != nil {
		config.Exitf("Error loading chaincode TLS material: %v", err)
	}
	if material != nil {
		tlsProps = shim.TLSProperties{
			Disabled:      false,
			Key:           material.Key,
			Cert:          material.Cert,
			ClientCACerts: material.ClientCACerts,
		}
	}
	server := &shim.ChaincodeServer{
		CCID:     cfg.CCID,
		Address:  cfg.Address,
		CC:       cc,
		TLSProps: tlsProps,
	}
	logger.Infof("Starting chaincode server %s on %s (program ID %s)", cfg.CCID, cfg.Address, programID)
	if err := server.Start(); err != nil {
		panic("Error starting chaincode server: " + err.Error())
	}
}
